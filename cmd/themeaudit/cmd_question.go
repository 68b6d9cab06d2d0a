package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"themeaudit/internal/duplicates"
	"themeaudit/internal/store"
)

func newQuestionCmd(c *cli) *cobra.Command {
	var consultationID string
	cmd := &cobra.Command{
		Use:   "question [number]",
		Short: "Audit a single question",
		Long: `Prints the duplicate groups of one question and the concerning theme
mappings found in them. Any question number may be given, including the last.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil || number < 1 {
				return fmt.Errorf("invalid question number %q", args[0])
			}

			ctx := cmd.Context()
			db, dataStore, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			finder := duplicates.New(dataStore, cmd.OutOrStdout(), c.logger)
			var consultation store.Consultation
			if consultationID != "" {
				consultation, err = dataStore.GetConsultation(ctx, consultationID)
			} else {
				consultation, err = finder.LatestConsultation(ctx)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Consultation: %s\n", consultation.Title)
			flags, err := finder.FindConcerning(ctx, consultation, number)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "concerning theme mappings")
			fmt.Fprintln(cmd.OutOrStdout(), duplicates.FormatFlags(flags))
			return nil
		},
	}
	cmd.Flags().StringVar(&consultationID, "consultation", "", "Consultation id (default: most recently created)")
	return cmd
}
