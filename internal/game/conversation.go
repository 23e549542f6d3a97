package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/whodunit/internal/cache"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/models"
	"github.com/myrjola/whodunit/internal/retrieval"
)

const (
	// exitToken ends the conversation when it appears in a question,
	// matched case-insensitively.
	exitToken = "exit"

	// DefaultMaxTurns bounds a single visit when the session does not
	// configure its own cap, so a conversation that never produces the exit
	// token still terminates.
	DefaultMaxTurns = 50

	// answerContextTokens is the retrieval budget for one answer.
	answerContextTokens = 300

	introTTL = 2 * time.Hour
)

// ConversationState is the serializable state of one character visit.
type ConversationState struct {
	CharacterIndex int
	Messages       []models.Message
	TurnCount      int
	Ended          bool
}

// Conversation runs a single character interview: introduction, then a
// question-answer loop until the exit token or the turn cap. It lives only
// for the duration of one visit; the owning session folds its message log and
// turn count back on exit.
type Conversation struct {
	logger    *slog.Logger
	gen       Generator
	intros    *cache.Cache[string]
	index     *retrieval.Index
	character models.Character
	scenario  models.Scenario
	maxTurns  int
	state     ConversationState

	// OnAnswerDelta, when set, receives answer fragments as they stream from
	// the backend. The complete answer is still returned by Ask.
	OnAnswerDelta func(delta string)
}

// NewConversation starts a visit with the character at characterIndex.
// A maxTurns of zero or less falls back to DefaultMaxTurns.
func NewConversation(
	logger *slog.Logger,
	gen Generator,
	intros *cache.Cache[string],
	index *retrieval.Index,
	characterIndex int,
	character models.Character,
	scenario models.Scenario,
	maxTurns int,
) *Conversation {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Conversation{
		logger:    logger.With("source", "game.Conversation", "character", character.Name),
		gen:       gen,
		intros:    intros,
		index:     index,
		character: character,
		scenario:  scenario,
		maxTurns:  maxTurns,
		state: ConversationState{
			CharacterIndex: characterIndex,
			Messages:       nil,
			TurnCount:      0,
			Ended:          false,
		},
		OnAnswerDelta: nil,
	}
}

// introCacheKey derives the cache key from stable identity fields only, so
// that repeated visits with identical context hit the cache.
func introCacheKey(character models.Character, scenario models.Scenario) string {
	return fmt.Sprintf("intro/%s/%s", character.Name, scenario.VictimName)
}

// Introduce emits the character's greeting, reusing a cached introduction for
// the same character and victim when available.
func (c *Conversation) Introduce(ctx context.Context) (string, error) {
	intro, err := c.intros.GetOrCompute(introCacheKey(c.character, c.scenario), func() (string, error) {
		return c.gen.Introduction(ctx, c.character, c.scenario)
	}, introTTL)
	if err != nil {
		return "", errors.Wrap(ErrGeneration, "generate introduction", slog.Any("cause", err))
	}

	c.state.Messages = append(c.state.Messages, models.Message{Speaker: models.SpeakerCharacter, Text: intro})
	c.state.TurnCount = 0
	return intro, nil
}

// SuggestQuestion composes the next question from the conversation so far.
func (c *Conversation) SuggestQuestion(ctx context.Context) (string, error) {
	question, err := c.gen.Question(ctx, c.character, c.scenario, c.messagesCopy())
	if err != nil {
		return "", errors.Wrap(ErrGeneration, "generate question", slog.Any("cause", err))
	}
	return question, nil
}

// Ask records the question and produces the character's answer. It returns
// ended=true when the question carried the exit token or the turn cap was
// reached. A blank question returns ErrEmptyQuestion so the caller can
// re-prompt; it costs no turn.
func (c *Conversation) Ask(ctx context.Context, question string) (answer string, ended bool, err error) {
	if c.state.Ended {
		return "", true, ErrConversationEnded
	}
	// Explicit turn cap instead of an unbounded loop.
	if c.state.TurnCount >= c.maxTurns {
		c.state.Ended = true
		return "", true, nil
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return "", false, ErrEmptyQuestion
	}

	c.state.TurnCount++
	c.state.Messages = append(c.state.Messages, models.Message{Speaker: models.SpeakerDetective, Text: question})

	if strings.Contains(strings.ToLower(question), exitToken) {
		c.state.Ended = true
		return "", true, nil
	}

	answer, err = c.answer(ctx, question)
	if err != nil {
		return "", false, err
	}
	c.state.Messages = append(c.state.Messages, models.Message{Speaker: models.SpeakerCharacter, Text: answer})
	return answer, false, nil
}

// answer retrieves bounded background context for the latest question and asks
// the backend for the in-role reply. An empty retrieval result falls back to
// the full backstory.
func (c *Conversation) answer(ctx context.Context, question string) (string, error) {
	background := c.index.Query(ctx, c.character.Name, question, answerContextTokens)
	if background == "" {
		background = c.character.Backstory
	}

	if c.OnAnswerDelta != nil {
		if streaming, ok := c.gen.(StreamingGenerator); ok {
			answer, err := streaming.AnswerStream(ctx, c.character, background, c.scenario, c.messagesCopy(), c.OnAnswerDelta)
			if err != nil {
				return "", errors.Wrap(ErrGeneration, "generate answer", slog.Any("cause", err))
			}
			return answer, nil
		}
	}

	answer, err := c.gen.Answer(ctx, c.character, background, c.scenario, c.messagesCopy())
	if err != nil {
		return "", errors.Wrap(ErrGeneration, "generate answer", slog.Any("cause", err))
	}
	return answer, nil
}

// Character returns the character being interviewed.
func (c *Conversation) Character() models.Character {
	return c.character
}

// TurnCount returns the number of questions asked during this visit.
func (c *Conversation) TurnCount() int {
	return c.state.TurnCount
}

// Ended reports whether the conversation has reached its terminal state.
func (c *Conversation) Ended() bool {
	return c.state.Ended
}

// Messages returns a copy of the visit's message log.
func (c *Conversation) Messages() []models.Message {
	return c.messagesCopy()
}

// State returns a snapshot of the conversation for serialization between
// phase boundaries.
func (c *Conversation) State() ConversationState {
	state := c.state
	state.Messages = c.messagesCopy()
	return state
}

// restoreConversation rebuilds a conversation from a serialized snapshot.
func restoreConversation(
	logger *slog.Logger,
	gen Generator,
	intros *cache.Cache[string],
	index *retrieval.Index,
	character models.Character,
	scenario models.Scenario,
	maxTurns int,
	state ConversationState,
) *Conversation {
	conv := NewConversation(logger, gen, intros, index, state.CharacterIndex, character, scenario, maxTurns)
	conv.state = state
	return conv
}

func (c *Conversation) messagesCopy() []models.Message {
	messages := make([]models.Message, len(c.state.Messages))
	copy(messages, c.state.Messages)
	return messages
}
