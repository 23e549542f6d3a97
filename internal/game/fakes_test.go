package game

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/myrjola/whodunit/internal/cache"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/models"
	"github.com/myrjola/whodunit/internal/retrieval"
	"github.com/myrjola/whodunit/internal/testhelpers"
)

// harborCast is the fixture roster for a small harbor-town mystery.
func harborCast() []models.Character {
	return []models.Character{
		{Role: models.RoleVictim, Name: "Elias Thorn", Backstory: "Elias Thorn owned the fish market. He kept a ledger of everyone's debts."},
		{Role: models.RoleKiller, Name: "Marta Voss", Backstory: "Marta Voss runs the harbor tavern. She owed Elias more than she could ever repay. On the night of the storm she followed him to the pier."},
		{Role: models.RoleSuspect, Name: "Old Tom", Backstory: "Old Tom mends nets by the pier. He sleeps in the boathouse and hears everything that happens on the waterfront."},
		{Role: models.RoleSuspect, Name: "Ingrid Pike", Backstory: "Ingrid Pike is the lighthouse keeper. She quarreled with Elias over the lease but was tending the lamp all night."},
	}
}

func harborScenario() models.Scenario {
	return models.Scenario{
		VictimName:        "Elias Thorn",
		TimeOfDeath:       "near midnight, during the storm",
		LocationFound:     "the end of the pier",
		MurderWeapon:      "a boat hook",
		CauseOfDeath:      "blunt trauma",
		CrimeSceneDetails: "The ledger was missing from his coat.",
		Witnesses:         "Old Tom heard shouting over the wind.",
		InitialClues:      "Muddy boot prints leading toward the tavern.",
		CastBrief:         "A tavern keeper, a net mender, and a lighthouse keeper, all in debt to the victim.",
	}
}

// fakeGenerator returns canned content and counts calls so tests can assert
// on cache behavior. failAnswers makes Answer return an error.
type fakeGenerator struct {
	cast           []models.Character
	scenario       models.Scenario
	introductions  int
	answers        int
	failAnswers    bool
	lastBackground string
}

func (g *fakeGenerator) Cast(_ context.Context, _ string, _ int) ([]models.Character, error) {
	return g.cast, nil
}

func (g *fakeGenerator) Scenario(_ context.Context, _ string, _ []models.Character) (models.Scenario, error) {
	return g.scenario, nil
}

func (g *fakeGenerator) Narration(_ context.Context, scenario models.Scenario) (string, error) {
	return fmt.Sprintf("%s lies dead at %s.", scenario.VictimName, scenario.LocationFound), nil
}

func (g *fakeGenerator) Introduction(_ context.Context, character models.Character, _ models.Scenario) (string, error) {
	g.introductions++
	return fmt.Sprintf("I am %s. Make it quick, detective.", character.Name), nil
}

func (g *fakeGenerator) Question(_ context.Context, character models.Character, _ models.Scenario, _ []models.Message) (string, error) {
	return fmt.Sprintf("Where were you on the night %s died?", character.Name), nil
}

func (g *fakeGenerator) Answer(_ context.Context, _ models.Character, background string, _ models.Scenario, _ []models.Message) (string, error) {
	g.answers++
	g.lastBackground = background
	if g.failAnswers {
		return "", errors.New("backend unavailable")
	}
	return "I was at the tavern all night.", nil
}

// streamingGenerator adds delta streaming on top of fakeGenerator.
type streamingGenerator struct {
	fakeGenerator
	deltas []string
}

func (g *streamingGenerator) AnswerStream(_ context.Context, _ models.Character, background string, _ models.Scenario, _ []models.Message, onDelta func(string)) (string, error) {
	g.lastBackground = background
	var full strings.Builder
	for _, delta := range g.deltas {
		onDelta(delta)
		full.WriteString(delta)
	}
	return full.String(), nil
}

// wordOverlapEmbedder maps text onto a fixed vocabulary so cosine similarity
// reflects word overlap. Deterministic and cheap.
type wordOverlapEmbedder struct{}

func (wordOverlapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vocabulary := []string{"pier", "tavern", "lighthouse", "debt", "storm", "ledger", "boathouse", "lamp"}
	vector := make([]float32, len(vocabulary))
	lower := strings.ToLower(text)
	for i, word := range vocabulary {
		if strings.Contains(lower, word) {
			vector[i] = 1
		}
	}
	return vector, nil
}

// scriptedPrompter replays canned player input and records everything shown.
// When abortAfter is positive, input acquisition fails with ErrAborted once
// that many questions have been asked, as if the player walked away.
type scriptedPrompter struct {
	selections  []selectionStep
	questions   []Question
	accusations []string
	abortAfter  int
	asked       int

	narrations        []string
	introductions     []string
	shownQuestions    []string
	shownAnswers      []string
	accusationResults []bool
	finalWon          bool
	finalKiller       string
	finished          bool
}

type selectionStep struct {
	index  int
	accuse bool
}

func (p *scriptedPrompter) ShowNarration(text string) { p.narrations = append(p.narrations, text) }

func (p *scriptedPrompter) ShowIntroduction(_ models.Character, text string) {
	p.introductions = append(p.introductions, text)
}

func (p *scriptedPrompter) ShowQuestion(_ models.Character, text string) {
	p.shownQuestions = append(p.shownQuestions, text)
}

func (p *scriptedPrompter) ShowAnswer(_ models.Character, text string) {
	p.shownAnswers = append(p.shownAnswers, text)
}

func (p *scriptedPrompter) ShowAccusationResult(correct bool, _ int) {
	p.accusationResults = append(p.accusationResults, correct)
}

func (p *scriptedPrompter) ShowResult(won bool, killerName string) {
	p.finished = true
	p.finalWon = won
	p.finalKiller = killerName
}

func (p *scriptedPrompter) SelectCharacter(_ []models.Character, _ map[int]bool) (int, bool, error) {
	if p.aborted() {
		return 0, false, ErrAborted
	}
	if len(p.selections) == 0 {
		return 0, true, nil
	}
	step := p.selections[0]
	p.selections = p.selections[1:]
	return step.index, step.accuse, nil
}

func (p *scriptedPrompter) AskQuestion(_ models.Character) (Question, error) {
	if p.aborted() {
		return Question{Text: "", UseAI: false}, ErrAborted
	}
	p.asked++
	if len(p.questions) == 0 {
		return Question{Text: "That's all, you may exit.", UseAI: false}, nil
	}
	question := p.questions[0]
	p.questions = p.questions[1:]
	return question, nil
}

func (p *scriptedPrompter) Accuse(suspects []models.Character, _ int) (string, error) {
	if p.aborted() {
		return "", ErrAborted
	}
	if len(p.accusations) == 0 {
		return suspects[0].Name, nil
	}
	name := p.accusations[0]
	p.accusations = p.accusations[1:]
	return name, nil
}

func (p *scriptedPrompter) aborted() bool {
	return p.abortAfter > 0 && p.asked >= p.abortAfter
}

func newTestSession(t *testing.T, gen Generator, cfg Config) *Session {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)
	intros := cache.New[string](cache.DefaultMaxSize, cache.DefaultTTL)
	index := retrieval.NewIndex(logger, wordOverlapEmbedder{}, retrieval.IndexOptions{})
	return NewSession(logger, gen, intros, index, cfg)
}
