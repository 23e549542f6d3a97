package models

import "time"

type Outcome string

const (
	OutcomeSolved   Outcome = "solved"
	OutcomeUnsolved Outcome = "unsolved"
)

// ClosedCase is the archived record of a finished investigation.
type ClosedCase struct {
	ID          string    `db:"id" json:"id"`
	Environment string    `db:"environment" json:"environment"`
	Outcome     Outcome   `db:"outcome" json:"outcome"`
	Killer      string    `db:"killer" json:"killer"`
	Actions     int       `db:"actions" json:"actions"`
	GuessesLeft int       `db:"guesses_left" json:"guesses_left"`
	Transcript  string    `db:"transcript" json:"transcript"`
	ClosedAt    time.Time `db:"closed_at" json:"closed_at"`
}
