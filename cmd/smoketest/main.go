// Command smoketest drives a full scripted investigation against a canned
// generator. It exercises the whole stack except the OpenAI backend and exits
// non-zero when any step misbehaves.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/myrjola/whodunit/internal/cache"
	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/models"
	"github.com/myrjola/whodunit/internal/retrieval"
)

type cannedGenerator struct {
	introductions int
}

func (g *cannedGenerator) Cast(_ context.Context, _ string, _ int) ([]models.Character, error) {
	return []models.Character{
		{Role: models.RoleVictim, Name: "Elias Thorn", Backstory: "Owned the fish market and a ledger of debts."},
		{Role: models.RoleKiller, Name: "Marta Voss", Backstory: "Runs the tavern. She owed Elias more than she could repay."},
		{Role: models.RoleSuspect, Name: "Old Tom", Backstory: "Mends nets by the pier and hears everything."},
	}, nil
}

func (g *cannedGenerator) Scenario(_ context.Context, _ string, _ []models.Character) (models.Scenario, error) {
	return models.Scenario{
		VictimName:    "Elias Thorn",
		TimeOfDeath:   "midnight",
		LocationFound: "the pier",
		MurderWeapon:  "a boat hook",
		CauseOfDeath:  "blunt trauma",
	}, nil
}

func (g *cannedGenerator) Narration(_ context.Context, scenario models.Scenario) (string, error) {
	return scenario.VictimName + " lies dead at " + scenario.LocationFound + ".", nil
}

func (g *cannedGenerator) Introduction(_ context.Context, character models.Character, _ models.Scenario) (string, error) {
	g.introductions++
	return "I am " + character.Name + ".", nil
}

func (g *cannedGenerator) Question(_ context.Context, character models.Character, _ models.Scenario, _ []models.Message) (string, error) {
	return "Where were you when " + character.Name + " last saw the victim?", nil
}

func (g *cannedGenerator) Answer(_ context.Context, _ models.Character, _ string, _ models.Scenario, _ []models.Message) (string, error) {
	return "I was at the tavern.", nil
}

type overlapEmbedder struct{}

func (overlapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	words := []string{"pier", "tavern", "ledger", "debt"}
	vector := make([]float32, len(words))
	for i, word := range words {
		if strings.Contains(strings.ToLower(text), word) {
			vector[i] = 1
		}
	}
	return vector, nil
}

type scriptedPrompter struct {
	steps  int
	failed bool
	out    *strings.Builder
}

func (p *scriptedPrompter) ShowNarration(text string) { fmt.Fprintln(p.out, text) }

func (p *scriptedPrompter) ShowIntroduction(_ models.Character, t string) { fmt.Fprintln(p.out, t) }

func (p *scriptedPrompter) ShowQuestion(_ models.Character, t string) { fmt.Fprintln(p.out, t) }

func (p *scriptedPrompter) ShowAnswer(_ models.Character, t string) { fmt.Fprintln(p.out, t) }

func (p *scriptedPrompter) ShowAccusationResult(correct bool, _ int) { fmt.Fprintln(p.out, correct) }

func (p *scriptedPrompter) ShowResult(won bool, killerName string) {
	fmt.Fprintln(p.out, won, killerName)
	if !won {
		p.failed = true
	}
}

func (p *scriptedPrompter) SelectCharacter(_ []models.Character, _ map[int]bool) (int, bool, error) {
	p.steps++
	switch p.steps {
	case 1:
		return 1, false, nil // first visit to the tavern keeper
	case 2:
		return 1, false, nil // revisit must hit the introduction cache
	default:
		return 0, true, nil
	}
}

func (p *scriptedPrompter) AskQuestion(_ models.Character) (game.Question, error) {
	return game.Question{Text: "Thank you, exit.", UseAI: false}, nil
}

func (p *scriptedPrompter) Accuse(_ []models.Character, _ int) (string, error) {
	return "Marta Voss", nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	gen := &cannedGenerator{}
	intros := cache.New[string](cache.DefaultMaxSize, cache.DefaultTTL)
	session := game.NewSession(logger, gen, intros,
		retrieval.NewIndex(logger, overlapEmbedder{}, retrieval.IndexOptions{}),
		game.Config{Environment: "harbor town", CastSize: 3, Guesses: 3, ActionLimit: 0})

	prompter := &scriptedPrompter{out: &strings.Builder{}}
	if err := session.Run(context.Background(), prompter); err != nil {
		fmt.Fprintln(os.Stderr, "smoketest: run failed:", err)
		os.Exit(1)
	}

	fail := func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, "smoketest: "+format+"\n", args...)
		os.Exit(1)
	}
	if prompter.failed || session.Phase() != game.PhaseWon {
		fail("expected a solved case, got phase %s", session.Phase())
	}
	if gen.introductions != 1 {
		fail("expected the revisit to hit the introduction cache, generator was called %d times", gen.introductions)
	}
	if stats := intros.Stats(); stats.Hits == 0 {
		fail("introduction cache reported no hits: %+v", stats)
	}
	if session.TotalActions() != 2 {
		fail("expected 2 actions across both visits, got %d", session.TotalActions())
	}
	fmt.Println("smoketest: OK")
}
