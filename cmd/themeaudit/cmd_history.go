package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"themeaudit/internal/reportrepo"
	"themeaudit/internal/snapshot"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var consultationID string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List earlier audit runs",
		Long: `Lists recorded runs from the Redis snapshot store and commits from the
git report repository, whichever are configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.RedisURL == "" && c.cfg.ReportsRepoDir == "" {
				return errors.New("no history configured: set REDIS_URL or THEMEAUDIT_REPORTS_REPO")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if c.cfg.RedisURL != "" {
				if consultationID == "" {
					db, dataStore, err := c.openStore(ctx)
					if err != nil {
						return err
					}
					latest, err := dataStore.LatestConsultation(ctx)
					_ = db.Close()
					if err != nil {
						return err
					}
					consultationID = latest.ID
				}

				snapshots, err := snapshot.NewRedisStore(c.cfg.RedisURL, c.cfg.SnapshotTTL)
				if err != nil {
					return err
				}
				defer snapshots.Close()
				runs, err := snapshots.History(ctx, consultationID, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Runs for consultation %s\n", consultationID)
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "RUN\tGENERATED\tGROUPS\tFLAGGED")
				for _, summary := range runs {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", summary.RunID, summary.GeneratedAt.Format(time.RFC3339), summary.DuplicateGroups, summary.FlaggedMappings)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			if c.cfg.ReportsRepoDir != "" {
				commits, err := reportrepo.New(c.cfg.ReportsRepoDir).History(limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Report repository")
				for _, commit := range commits {
					fmt.Fprintf(out, "%s  %s  %s\n", commit.Hash, commit.CreatedAt.Format(time.RFC3339), firstLine(commit.Message))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&consultationID, "consultation", "", "Consultation id (default: most recently created)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum entries to list")
	return cmd
}

func firstLine(message string) string {
	for i, r := range message {
		if r == '\n' {
			return message[:i]
		}
	}
	return message
}
