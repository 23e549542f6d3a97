package repositories

import (
	"context"
	"log/slog"

	"github.com/myrjola/whodunit/internal/db"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/models"
)

// CaseFileRepository archives finished investigations so they can be browsed
// after the session is gone.
type CaseFileRepository struct {
	dbs    *db.Database
	logger *slog.Logger
}

func NewCaseFileRepository(dbs *db.Database, logger *slog.Logger) *CaseFileRepository {
	return &CaseFileRepository{
		dbs:    dbs,
		logger: logger.With("source", "CaseFileRepository"),
	}
}

func (r *CaseFileRepository) Archive(ctx context.Context, closedCase models.ClosedCase) error {
	stmt := `INSERT INTO closed_cases (id, environment, outcome, killer, actions, guesses_left, transcript, closed_at)
VALUES (:id, :environment, :outcome, :killer, :actions, :guesses_left, :transcript, :closed_at)`
	if _, err := r.dbs.ReadWrite.NamedExecContext(ctx, stmt, closedCase); err != nil {
		return errors.Wrap(err, "insert closed case", slog.String("id", closedCase.ID))
	}
	return nil
}

func (r *CaseFileRepository) Get(ctx context.Context, id string) (models.ClosedCase, error) {
	var closedCase models.ClosedCase
	stmt := `SELECT id, environment, outcome, killer, actions, guesses_left, transcript, closed_at
FROM closed_cases WHERE id = ?`
	if err := r.dbs.ReadOnly.GetContext(ctx, &closedCase, stmt, id); err != nil {
		return models.ClosedCase{}, errors.Wrap(err, "read closed case", slog.String("id", id))
	}
	return closedCase, nil
}

// List returns the most recently closed cases, newest first.
func (r *CaseFileRepository) List(ctx context.Context, limit int) ([]models.ClosedCase, error) {
	var closedCases []models.ClosedCase
	stmt := `SELECT id, environment, outcome, killer, actions, guesses_left, transcript, closed_at
FROM closed_cases ORDER BY closed_at DESC, id DESC LIMIT ?`
	if err := r.dbs.ReadOnly.SelectContext(ctx, &closedCases, stmt, limit); err != nil {
		return nil, errors.Wrap(err, "list closed cases")
	}
	return closedCases, nil
}
