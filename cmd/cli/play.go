package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/myrjola/whodunit/internal/ai"
	"github.com/myrjola/whodunit/internal/cache"
	"github.com/myrjola/whodunit/internal/db"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/models"
	"github.com/myrjola/whodunit/internal/repositories"
	"github.com/myrjola/whodunit/internal/retrieval"
	"github.com/spf13/cobra"
)

var (
	playEnvironment string
	playCharacters  int
	playGuesses     int
	playActions     int
	playTurns       int
	playModel       string
	playSQLiteURL   string
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start a new investigation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPlay(cmd)
	},
}

func init() {
	playCmd.Flags().StringVarP(&playEnvironment, "environment", "e", "", "setting for the mystery, e.g. \"a remote mountain monastery\"")
	playCmd.Flags().IntVarP(&playCharacters, "characters", "c", 5, "number of characters including the victim")
	playCmd.Flags().IntVarP(&playGuesses, "guesses", "g", 3, "number of accusation attempts")
	playCmd.Flags().IntVarP(&playActions, "actions", "a", 0, "total question budget, 0 for unlimited")
	playCmd.Flags().IntVarP(&playTurns, "turns", "t", 0, "question cap per visit, 0 for the default")
	playCmd.Flags().StringVar(&playModel, "model", "", "OpenAI model override")
	playCmd.Flags().StringVar(&playSQLiteURL, "sqlite-url", "./whodunit.sqlite", "SQLite URL for the case archive")
}

func runPlay(cmd *cobra.Command) error {
	// A missing .env file is fine; OPENAI_API_KEY may come from the environment.
	_ = godotenv.Load()

	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	prompter := &terminalPrompter{reader: reader, out: out}

	if playEnvironment == "" {
		line, err := prompter.readLine("Describe the setting for the mystery: ")
		if err != nil {
			// Closed stdin before the game started; nothing to archive.
			return nil
		}
		playEnvironment = line
	}
	if playEnvironment == "" {
		return errors.New("environment must not be empty")
	}
	if playCharacters < 3 {
		return errors.New("at least 3 characters are needed for a mystery")
	}
	if playGuesses < 1 {
		return errors.New("at least 1 guess is needed")
	}
	if playActions < 0 {
		return errors.New("action budget must not be negative")
	}
	if playTurns < 0 {
		return errors.New("turn cap must not be negative")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	dbs, err := db.NewDatabase(playSQLiteURL)
	if err != nil {
		return errors.Wrap(err, "open database", slog.String("url", playSQLiteURL))
	}
	defer func() { _ = dbs.Close() }()
	caseFiles := repositories.NewCaseFileRepository(dbs, logger)

	client := ai.NewClient(os.Getenv("OPENAI_API_KEY"), playModel)
	session := game.NewSession(
		logger,
		ai.NewGenerator(logger, client),
		cache.New[string](cache.DefaultMaxSize, cache.DefaultTTL),
		retrieval.NewIndex(logger, client, retrieval.IndexOptions{}),
		game.Config{
			Environment: playEnvironment,
			CastSize:    playCharacters,
			Guesses:     playGuesses,
			ActionLimit: playActions,
			MaxTurns:    playTurns,
		},
	)

	fmt.Fprintln(out, "Assembling the cast and the crime. This takes a moment...")
	if err = session.Run(cmd.Context(), prompter); err != nil {
		return err
	}

	outcome := models.OutcomeUnsolved
	if session.Phase() == game.PhaseWon {
		outcome = models.OutcomeSolved
	}
	killerName := ""
	if killer, ok := session.Killer(); ok {
		killerName = killer.Name
	}
	err = caseFiles.Archive(cmd.Context(), models.ClosedCase{
		ID:          session.ID(),
		Environment: session.Environment(),
		Outcome:     outcome,
		Killer:      killerName,
		Actions:     session.TotalActions(),
		GuessesLeft: session.GuessesLeft(),
		Transcript:  formatTranscript(session.Log()),
		ClosedAt:    time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "archive case")
	}
	fmt.Fprintf(out, "Case %s archived.\n", session.ID())
	return nil
}

func formatTranscript(log []models.Message) string {
	transcript := ""
	for _, message := range log {
		transcript += string(message.Speaker) + ": " + message.Text + "\n"
	}
	return transcript
}
