package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"themeaudit/internal/duplicates"
	"themeaudit/internal/report"
	"themeaudit/internal/util"
)

type runOptions struct {
	consultationID      string
	includeLastQuestion bool
	format              string
	output              string
	publish             []string
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().StringVar(&opts.consultationID, "consultation", "", "Consultation id (default: most recently created)")
	cmd.Flags().BoolVar(&opts.includeLastQuestion, "include-last-question", false, "Also check the consultation's last question")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Report format: text, json, markdown, html or pdf")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the report to this file or directory")
	cmd.Flags().StringSliceVar(&opts.publish, "publish", nil, "Sinks that must succeed: snapshot, index, archive, repo, email")
}

func newRunCmd(c *cli) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Audit every question of a consultation",
		Long: `Audits questions 1 to N-1 of the consultation (1 to N with
--include-last-question), printing the diagnostics of each duplicate group
and the concerning theme mappings per question.

Configured sinks (Redis snapshots, Meilisearch, S3 archive, git report
repository, email) receive the result afterwards. Their failures are logged;
sinks named with --publish must be configured and must succeed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAudit(cmd, opts)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func (c *cli) runAudit(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	required, err := parseSinks(opts.publish)
	if err != nil {
		return err
	}

	db, dataStore, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	finder := duplicates.New(dataStore, cmd.OutOrStdout(), c.logger)
	result, err := finder.Run(ctx, duplicates.Options{
		ConsultationID:      opts.consultationID,
		IncludeLastQuestion: opts.includeLastQuestion,
		RunID:               util.NewRunID(time.Now()),
	})
	if err != nil {
		return err
	}
	c.logger.Info("audit finished",
		zap.String("run", result.RunID),
		zap.String("consultation", result.Consultation.ID),
		zap.Int("duplicate_groups", result.DuplicateGroupCount()),
		zap.Int("flagged_mappings", result.FlaggedMappingCount()))

	var rendered *report.Result
	if opts.output != "" {
		rendered, err = report.Render(ctx, result, format)
		if err != nil {
			return err
		}
		path, err := writeReport(opts.output, rendered)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
	}

	p := &publisher{
		cfg:      c.cfg,
		logger:   c.logger,
		out:      cmd.OutOrStdout(),
		required: required,
	}
	return p.publish(ctx, result, rendered)
}

// writeReport writes into output, or into a file named after the run when
// output is an existing directory.
func writeReport(output string, rendered *report.Result) (string, error) {
	path := output
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		path = filepath.Join(output, rendered.Filename)
	}
	if err := os.WriteFile(path, rendered.Data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
