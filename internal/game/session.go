package game

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/myrjola/whodunit/internal/cache"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/models"
	"github.com/myrjola/whodunit/internal/random"
	"github.com/myrjola/whodunit/internal/retrieval"
	"github.com/oklog/ulid/v2"
)

// Phase is the session's position in the investigation.
type Phase string

const (
	PhaseCreating   Phase = "creating"
	PhaseNarrating  Phase = "narrating"
	PhaseSelecting  Phase = "selecting"
	PhaseConversing Phase = "conversing"
	PhaseAccusing   Phase = "accusing"
	PhaseWon        Phase = "won"
	PhaseLost       Phase = "lost"
)

// Terminal reports whether the phase accepts no further input.
func (p Phase) Terminal() bool {
	return p == PhaseWon || p == PhaseLost
}

// Config is the bootstrap configuration for one session. It is not revisited
// after the session starts.
type Config struct {
	Environment string
	CastSize    int
	Guesses     int
	// ActionLimit caps total question-answer turns across all visits.
	// Zero means unlimited.
	ActionLimit int
	// MaxTurns caps question-answer turns within a single visit.
	// Zero means DefaultMaxTurns.
	MaxTurns int
}

// State is the serializable canonical session state. Only the Session mutates
// it. Visited and Log must round-trip without reordering or duplication.
type State struct {
	ID           string
	Environment  string
	Cast         []models.Character
	Scenario     models.Scenario
	Narration    string
	Log          []models.Message
	Visited      map[int]bool
	TotalActions int
	ActionLimit  int
	MaxTurns     int
	GuessesLeft  int
	Phase        Phase

	// Conversation is set while a visit is in progress so a web front end can
	// serialize mid-visit.
	Conversation *ConversationState
}

// Session is the top-level controller: character and story creation,
// narration, repeated character visits, and the accusation phase. The shared
// cache and index are injected; the session never owns them.
type Session struct {
	logger   *slog.Logger
	gen      Generator
	intros   *cache.Cache[string]
	index    *retrieval.Index
	state    State
	conv     *Conversation
	castSize int
}

// NewSession creates a session in the Creating phase.
func NewSession(
	logger *slog.Logger,
	gen Generator,
	intros *cache.Cache[string],
	index *retrieval.Index,
	cfg Config,
) *Session {
	return &Session{
		logger:   logger.With("source", "game.Session"),
		gen:      gen,
		intros:   intros,
		index:    index,
		castSize: cfg.CastSize,
		state: State{
			ID:           ulid.Make().String(),
			Environment:  cfg.Environment,
			Cast:         nil,
			Scenario:     models.Scenario{},
			Narration:    "",
			Log:          nil,
			Visited:      make(map[int]bool),
			TotalActions: 0,
			ActionLimit:  cfg.ActionLimit,
			MaxTurns:     cfg.MaxTurns,
			GuessesLeft:  cfg.Guesses,
			Phase:        PhaseCreating,
			Conversation: nil,
		},
		conv: nil,
	}
}

// RestoreSession rebuilds a session from a serialized snapshot, re-indexing
// character backgrounds so retrieval works after a process restart.
func RestoreSession(
	ctx context.Context,
	logger *slog.Logger,
	gen Generator,
	intros *cache.Cache[string],
	index *retrieval.Index,
	state State,
) *Session {
	s := &Session{
		logger: logger.With("source", "game.Session"),
		gen:    gen,
		intros: intros,
		index:  index,
		state:  state,
		conv:   nil,
	}
	if s.state.Visited == nil {
		s.state.Visited = make(map[int]bool)
	}
	for _, character := range s.state.Cast {
		if character.Role != models.RoleVictim {
			index.AddSource(ctx, character.Name, character.Backstory)
		}
	}
	if cs := state.Conversation; cs != nil && cs.CharacterIndex >= 0 && cs.CharacterIndex < len(state.Cast) {
		s.conv = restoreConversation(
			s.logger, gen, intros, index, state.Cast[cs.CharacterIndex], state.Scenario, state.MaxTurns, *cs)
	}
	return s
}

// Begin runs the Creating and Narrating phases: cast, scenario, and opening
// narration. A generation failure here is fatal to the session and surfaced
// to the caller; the core never retries.
func (s *Session) Begin(ctx context.Context) error {
	if s.state.Phase != PhaseCreating {
		return errors.Wrap(ErrWrongPhase, "begin session", slog.String("phase", string(s.state.Phase)))
	}

	// Salt the environment so repeated sessions produce different casts.
	environment := s.state.Environment
	if caseNumber, err := random.CaseNumber(); err == nil {
		environment = environment + " (Case #" + strconv.Itoa(caseNumber) + ")"
	}

	cast, err := s.gen.Cast(ctx, environment, s.castSize)
	if err != nil {
		return errors.Wrap(ErrGeneration, "create cast", slog.Any("cause", err))
	}
	if err = validateCast(cast); err != nil {
		return err
	}
	s.state.Cast = cast

	// Index backgrounds for bounded-context retrieval during interviews.
	for _, character := range cast {
		if character.Role != models.RoleVictim {
			s.index.AddSource(ctx, character.Name, character.Backstory)
		}
	}

	scenario, err := s.gen.Scenario(ctx, s.state.Environment, cast)
	if err != nil {
		return errors.Wrap(ErrGeneration, "create scenario", slog.Any("cause", err))
	}
	s.state.Scenario = scenario
	s.state.Phase = PhaseNarrating

	narration, err := s.gen.Narration(ctx, scenario)
	if err != nil {
		return errors.Wrap(ErrGeneration, "create narration", slog.Any("cause", err))
	}
	s.state.Narration = narration
	s.state.Log = append(s.state.Log, models.Message{Speaker: models.SpeakerNarrator, Text: narration})
	s.state.Phase = PhaseSelecting

	s.logger.LogAttrs(ctx, slog.LevelInfo, "session started",
		slog.String("id", s.state.ID),
		slog.Int("cast_size", len(cast)),
		slog.Int("action_limit", s.state.ActionLimit))
	return nil
}

// validateCast enforces the generation contract: exactly one killer and
// exactly one victim. The session fails rather than retries on violation.
func validateCast(cast []models.Character) error {
	killers, victims := 0, 0
	for _, character := range cast {
		switch character.Role {
		case models.RoleKiller:
			killers++
		case models.RoleVictim:
			victims++
		case models.RoleSuspect:
		}
	}
	if killers != 1 || victims != 1 {
		return errors.Wrap(ErrGeneration, "cast must contain exactly one killer and one victim",
			slog.Int("killers", killers), slog.Int("victims", victims))
	}
	return nil
}

// ActionsExhausted reports whether the action limit forces the accusation phase.
func (s *Session) ActionsExhausted() bool {
	return s.state.ActionLimit > 0 && s.state.TotalActions >= s.state.ActionLimit
}

// Select starts a visit with the character at index. Victim picks and
// out-of-range indices return ErrInvalidSelection without mutating state.
func (s *Session) Select(index int) error {
	if s.state.Phase != PhaseSelecting {
		return errors.Wrap(ErrWrongPhase, "select character", slog.String("phase", string(s.state.Phase)))
	}
	if s.ActionsExhausted() {
		// The budget forces the accusation regardless of player intent.
		s.state.Phase = PhaseAccusing
		return errors.Wrap(ErrWrongPhase, "action limit reached", slog.Int("limit", s.state.ActionLimit))
	}
	if index < 0 || index >= len(s.state.Cast) {
		return errors.Wrap(ErrInvalidSelection, "index out of range", slog.Int("index", index))
	}
	character := s.state.Cast[index]
	if character.Role == models.RoleVictim {
		return errors.Wrap(ErrInvalidSelection, "cannot interview the victim", slog.String("name", character.Name))
	}

	s.conv = NewConversation(s.logger, s.gen, s.intros, s.index, index, character, s.state.Scenario, s.state.MaxTurns)
	s.state.Conversation = nil
	s.state.Phase = PhaseConversing
	return nil
}

// Conversation returns the in-progress visit, or nil outside the Conversing phase.
func (s *Session) Conversation() *Conversation {
	return s.conv
}

// EndConversation folds the visit back into the session: the character is
// marked visited (idempotently), the visit's turns are added to the action
// total, and its log is appended to the session log. It must be called on
// every exit path, including aborts, so counted actions are never lost.
func (s *Session) EndConversation() {
	if s.state.Phase != PhaseConversing || s.conv == nil {
		return
	}

	s.state.Visited[s.conv.state.CharacterIndex] = true
	s.state.TotalActions += s.conv.TurnCount()
	s.state.Log = append(s.state.Log, s.conv.Messages()...)
	s.conv = nil
	s.state.Conversation = nil
	s.state.Phase = PhaseSelecting
}

// ProceedToAccusation is the explicit transition from character selection to
// the accusation phase.
func (s *Session) ProceedToAccusation() error {
	if s.state.Phase != PhaseSelecting && s.state.Phase != PhaseAccusing {
		return errors.Wrap(ErrWrongPhase, "proceed to accusation", slog.String("phase", string(s.state.Phase)))
	}
	s.state.Phase = PhaseAccusing
	return nil
}

// Accuse compares the accused name against the killer. A correct accusation
// wins the session. An incorrect one consumes a guess and either loses the
// session or routes back to Selecting so the player can gather more clues.
// Unknown names return ErrInvalidAccusation without consuming a guess.
func (s *Session) Accuse(name string) (won bool, err error) {
	if s.state.Phase != PhaseAccusing {
		return false, errors.Wrap(ErrWrongPhase, "accuse", slog.String("phase", string(s.state.Phase)))
	}

	accused, ok := s.findSuspect(name)
	if !ok {
		return false, errors.Wrap(ErrInvalidAccusation, "not a suspect", slog.String("name", name))
	}

	if accused.Role == models.RoleKiller {
		s.state.Phase = PhaseWon
		return true, nil
	}

	s.state.GuessesLeft--
	if s.state.GuessesLeft <= 0 {
		s.state.Phase = PhaseLost
		return false, nil
	}
	s.state.Phase = PhaseSelecting
	return false, nil
}

func (s *Session) findSuspect(name string) (models.Character, bool) {
	name = strings.TrimSpace(name)
	for _, character := range s.state.Cast {
		if character.Role != models.RoleVictim && strings.EqualFold(character.Name, name) {
			return character, true
		}
	}
	return models.Character{}, false
}

// Suspects returns the non-victim characters sorted by name.
func (s *Session) Suspects() []models.Character {
	var suspects []models.Character
	for _, character := range s.state.Cast {
		if character.Role != models.RoleVictim {
			suspects = append(suspects, character)
		}
	}
	sort.Slice(suspects, func(a, b int) bool { return suspects[a].Name < suspects[b].Name })
	return suspects
}

// Killer returns the killer character.
func (s *Session) Killer() (models.Character, bool) {
	for _, character := range s.state.Cast {
		if character.Role == models.RoleKiller {
			return character, true
		}
	}
	return models.Character{}, false
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.state.ID }

// Environment returns the setting the session was created with.
func (s *Session) Environment() string { return s.state.Environment }

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.state.Phase }

// Cast returns the character roster in generation order.
func (s *Session) Cast() []models.Character {
	cast := make([]models.Character, len(s.state.Cast))
	copy(cast, s.state.Cast)
	return cast
}

// Scenario returns the crime scenario.
func (s *Session) Scenario() models.Scenario { return s.state.Scenario }

// Narration returns the opening narration.
func (s *Session) Narration() string { return s.state.Narration }

// Visited returns a copy of the visited character indices.
func (s *Session) Visited() map[int]bool {
	visited := make(map[int]bool, len(s.state.Visited))
	for index := range s.state.Visited {
		visited[index] = true
	}
	return visited
}

// TotalActions returns the number of actions consumed so far.
func (s *Session) TotalActions() int { return s.state.TotalActions }

// ActionLimit returns the session-wide action cap, zero meaning unlimited.
func (s *Session) ActionLimit() int { return s.state.ActionLimit }

// MaxTurns returns the per-visit turn cap, zero meaning DefaultMaxTurns.
func (s *Session) MaxTurns() int { return s.state.MaxTurns }

// GuessesLeft returns the remaining accusation attempts.
func (s *Session) GuessesLeft() int { return s.state.GuessesLeft }

// Log returns a copy of the session-wide message log.
func (s *Session) Log() []models.Message {
	log := make([]models.Message, len(s.state.Log))
	copy(log, s.state.Log)
	return log
}

// Snapshot returns a deep copy of the session state for serialization
// between phase boundaries.
func (s *Session) Snapshot() State {
	state := s.state
	state.Cast = s.Cast()
	state.Log = s.Log()
	state.Visited = s.Visited()
	if s.conv != nil {
		conversation := s.conv.State()
		state.Conversation = &conversation
	}
	return state
}
