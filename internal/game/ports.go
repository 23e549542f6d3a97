package game

import (
	"context"

	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/models"
)

var (
	// ErrGeneration signals that the generation backend failed or produced an
	// unusable result. Fatal during session setup, per-turn otherwise.
	ErrGeneration = errors.NewSentinel("generation failed")
	// ErrInvalidSelection signals an out-of-range or victim pick. Recoverable
	// by re-prompting; session state is not mutated.
	ErrInvalidSelection = errors.NewSentinel("invalid character selection")
	// ErrInvalidAccusation signals an accusation of someone not in the suspect
	// list. Recoverable by re-prompting; session state is not mutated.
	ErrInvalidAccusation = errors.NewSentinel("invalid accusation")
	// ErrEmptyQuestion signals a blank question. The caller should re-prompt.
	ErrEmptyQuestion = errors.NewSentinel("empty question")
	// ErrConversationEnded signals a question asked after the conversation ended.
	ErrConversationEnded = errors.NewSentinel("conversation has ended")
	// ErrWrongPhase signals an operation attempted in a phase that does not allow it.
	ErrWrongPhase = errors.NewSentinel("operation not allowed in this phase")
	// ErrAborted signals that the player abandoned the investigation, for
	// example by closing stdin. Run stops cleanly without a verdict so the
	// caller can still archive the unfinished case.
	ErrAborted = errors.NewSentinel("investigation abandoned")
)

// Generator is the generation backend. Calls are blocking request-response;
// retry policy, if any, belongs to the implementation, never to the callers.
type Generator interface {
	// Cast generates the character roster for an environment. The contract
	// requires exactly one killer and one victim in the result.
	Cast(ctx context.Context, environment string, size int) ([]models.Character, error)
	// Scenario generates the crime scenario for a cast.
	Scenario(ctx context.Context, environment string, cast []models.Character) (models.Scenario, error)
	// Narration produces the crime-scene narration opening the session.
	Narration(ctx context.Context, scenario models.Scenario) (string, error)
	// Introduction produces a character's greeting to the detective.
	Introduction(ctx context.Context, character models.Character, scenario models.Scenario) (string, error)
	// Question composes the next investigative question from the conversation so far.
	Question(ctx context.Context, character models.Character, scenario models.Scenario, history []models.Message) (string, error)
	// Answer produces the character's in-role reply to the latest question.
	// background is the retrieval-bounded slice of the character's backstory.
	Answer(ctx context.Context, character models.Character, background string, scenario models.Scenario, history []models.Message) (string, error)
}

// StreamingGenerator is an optional capability of a Generator. When the
// conversation has a delta consumer and the generator supports streaming,
// answers are streamed token by token.
type StreamingGenerator interface {
	AnswerStream(ctx context.Context, character models.Character, background string, scenario models.Scenario, history []models.Message, onDelta func(string)) (string, error)
}

// Question is the player's input for one turn: either literal text or a
// request for an AI-composed question.
type Question struct {
	Text  string
	UseAI bool
}

// Prompter is the presentation layer. Input acquisition blocks until the
// player responds; rendering methods must not mutate their arguments.
type Prompter interface {
	ShowNarration(text string)
	ShowIntroduction(character models.Character, text string)
	ShowQuestion(character models.Character, text string)
	ShowAnswer(character models.Character, text string)
	ShowAccusationResult(correct bool, guessesLeft int)
	ShowResult(won bool, killerName string)

	// SelectCharacter returns the index of the chosen character, or
	// accuse=true to proceed to the accusation phase. It returns ErrAborted
	// when the player abandons the investigation.
	SelectCharacter(cast []models.Character, visited map[int]bool) (index int, accuse bool, err error)
	// AskQuestion returns the next question for the character, or ErrAborted.
	AskQuestion(character models.Character) (Question, error)
	// Accuse returns the name of the accused suspect, or ErrAborted.
	Accuse(suspects []models.Character, guessesLeft int) (string, error)
}
