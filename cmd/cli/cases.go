package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/myrjola/whodunit/internal/db"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/repositories"
	"github.com/spf13/cobra"
)

var (
	casesLimit     int
	casesSQLiteURL string
	casesVerbose   bool
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "List archived investigations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCases(cmd)
	},
}

func init() {
	casesCmd.Flags().IntVarP(&casesLimit, "limit", "n", 20, "maximum number of cases to show")
	casesCmd.Flags().StringVar(&casesSQLiteURL, "sqlite-url", "./whodunit.sqlite", "SQLite URL for the case archive")
	casesCmd.Flags().BoolVarP(&casesVerbose, "verbose", "v", false, "include full transcripts")
}

func runCases(cmd *cobra.Command) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	dbs, err := db.NewDatabase(casesSQLiteURL)
	if err != nil {
		return errors.Wrap(err, "open database", slog.String("url", casesSQLiteURL))
	}
	defer func() { _ = dbs.Close() }()

	cases, err := repositories.NewCaseFileRepository(dbs, logger).List(cmd.Context(), casesLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(cases) == 0 {
		fmt.Fprintln(out, "No archived cases yet.")
		return nil
	}
	for _, closedCase := range cases {
		fmt.Fprintf(out, "%s  %s  %-8s  killer: %s  actions: %d\n",
			closedCase.ClosedAt.Format("2006-01-02 15:04"),
			closedCase.ID,
			closedCase.Outcome,
			closedCase.Killer,
			closedCase.Actions,
		)
		fmt.Fprintf(out, "    setting: %s\n", closedCase.Environment)
		if casesVerbose {
			fmt.Fprintln(out, closedCase.Transcript)
		}
	}
	return nil
}
