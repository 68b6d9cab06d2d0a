package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"themeaudit/internal/search"
)

func newSearchCmd(c *cli) *cobra.Command {
	query := search.Query{}
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search indexed concerning theme mappings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.MeiliURL == "" {
				return errors.New("search not configured: set MEILI_URL")
			}
			index := search.NewMeili(c.cfg.MeiliURL, c.cfg.MeiliMasterKey, c.logger)
			if !index.Healthy() {
				return errors.New("meilisearch unavailable")
			}

			query.Text = strings.Join(args, " ")
			results, total, err := index.Search(query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d of %d concerns\n", len(results), total)
			for _, result := range results {
				fmt.Fprintf(out, "Q%d  %s  %s  %s\n", result.QuestionNumber, result.MappingID, result.Reason, result.Snippet)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&query.ConsultationID, "consultation", "", "Only concerns of this consultation")
	cmd.Flags().StringVar(&query.Reason, "reason", "", "Only concerns with this reason")
	cmd.Flags().IntVar(&query.Limit, "limit", 20, "Maximum results")
	return cmd
}
