package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"themeaudit/internal/archive"
	"themeaudit/internal/config"
	"themeaudit/internal/duplicates"
	"themeaudit/internal/notify"
	"themeaudit/internal/report"
	"themeaudit/internal/reportrepo"
	"themeaudit/internal/search"
	"themeaudit/internal/snapshot"
)

const (
	sinkSnapshot = "snapshot"
	sinkIndex    = "index"
	sinkArchive  = "archive"
	sinkRepo     = "repo"
	sinkEmail    = "email"
)

var sinkNames = []string{sinkSnapshot, sinkIndex, sinkArchive, sinkRepo, sinkEmail}

var errSinkNotConfigured = errors.New("sink not configured")

func parseSinks(names []string) (map[string]bool, error) {
	required := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		known := false
		for _, candidate := range sinkNames {
			if candidate == name {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown sink %q (want one of %s)", name, strings.Join(sinkNames, ", "))
		}
		required[name] = true
	}
	return required, nil
}

// publisher hands a finished run to the configured sinks in order.
type publisher struct {
	cfg      config.Config
	logger   *zap.Logger
	out      io.Writer
	required map[string]bool
}

func (p *publisher) publish(ctx context.Context, run duplicates.Report, rendered *report.Result) error {
	doc := report.NewDocument(run)

	steps := []struct {
		name       string
		configured bool
		fn         func() error
	}{
		{sinkSnapshot, p.cfg.RedisURL != "", func() error { return p.saveSnapshot(ctx, doc) }},
		{sinkIndex, p.cfg.MeiliURL != "", func() error { return p.indexConcerns(doc) }},
		{sinkArchive, p.archiveConfig().IsConfigured(), func() error { return p.archiveReport(ctx, run, doc, rendered) }},
		{sinkRepo, p.cfg.ReportsRepoDir != "", func() error { return p.commitReport(ctx, run, doc) }},
		{sinkEmail, p.mailer().IsConfigured() && len(p.cfg.NotifyTo) > 0, func() error { return p.sendSummary(doc) }},
	}

	for _, step := range steps {
		if err := p.sink(step.name, step.configured, step.fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *publisher) sink(name string, configured bool, fn func() error) error {
	if !configured {
		if p.required[name] {
			return fmt.Errorf("publish %s: %w", name, errSinkNotConfigured)
		}
		p.logger.Debug("sink disabled", zap.String("sink", name))
		return nil
	}
	if err := fn(); err != nil {
		if p.required[name] {
			return fmt.Errorf("publish %s: %w", name, err)
		}
		p.logger.Warn("publish failed", zap.String("sink", name), zap.Error(err))
	}
	return nil
}

func (p *publisher) saveSnapshot(ctx context.Context, doc report.Document) error {
	snapshots, err := snapshot.NewRedisStore(p.cfg.RedisURL, p.cfg.SnapshotTTL)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	current := snapshot.NewSummary(doc)
	var previous *snapshot.Summary
	latest, err := snapshots.Latest(ctx, doc.ConsultationID)
	switch {
	case err == nil:
		previous = &latest
	case !errors.Is(err, snapshot.ErrNoSnapshot):
		return err
	}

	fmt.Fprintln(p.out, describeChange(snapshot.Compare(previous, current), previous))
	return snapshots.Save(ctx, current)
}

func describeChange(change snapshot.Change, previous *snapshot.Summary) string {
	switch {
	case change.First:
		return "First recorded run for this consultation"
	case !change.Changed:
		return fmt.Sprintf("No change since run %s", previous.RunID)
	default:
		return fmt.Sprintf("Changed since run %s: flags %+d, duplicate groups %+d", previous.RunID, change.FlagDelta, change.GroupDelta)
	}
}

func (p *publisher) indexConcerns(doc report.Document) error {
	index := search.NewMeili(p.cfg.MeiliURL, p.cfg.MeiliMasterKey, p.logger)
	if !index.Healthy() {
		return errors.New("meilisearch unavailable")
	}
	indexed, cleared, err := index.IndexConcerns(doc)
	if err != nil {
		return err
	}
	p.logger.Info("concerns indexed", zap.Int("indexed", indexed), zap.Int("cleared", cleared))
	return nil
}

func (p *publisher) archiveConfig() archive.Config {
	return archive.Config{
		Endpoint:  p.cfg.S3Endpoint,
		AccessKey: p.cfg.S3AccessKey,
		SecretKey: p.cfg.S3SecretKey,
		Bucket:    p.cfg.S3Bucket,
		Region:    p.cfg.S3Region,
		UseSSL:    p.cfg.S3UseSSL,
	}
}

// archiveReport uploads the rendered report, or JSON when none was rendered.
func (p *publisher) archiveReport(ctx context.Context, run duplicates.Report, doc report.Document, rendered *report.Result) error {
	if rendered == nil {
		var err error
		rendered, err = report.Render(ctx, run, report.FormatJSON)
		if err != nil {
			return err
		}
	}
	uploader, err := archive.New(p.archiveConfig())
	if err != nil {
		return err
	}
	consultation := doc.ConsultationSlug
	if consultation == "" {
		consultation = doc.ConsultationID
	}
	location, err := uploader.Upload(ctx, archive.ObjectKey(consultation, doc.RunID, rendered.Filename), rendered.Data, rendered.MimeType)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Report archived to %s\n", location)
	return nil
}

// commitReport keeps one markdown file per consultation so consecutive
// runs diff cleanly.
func (p *publisher) commitReport(ctx context.Context, run duplicates.Report, doc report.Document) error {
	rendered, err := report.Render(ctx, run, report.FormatMarkdown)
	if err != nil {
		return err
	}
	message := fmt.Sprintf("Audit %s: %d concerning theme mappings\n\nRun: %s", doc.ConsultationTitle, doc.FlaggedMappings, doc.RunID)
	commit, err := reportrepo.New(p.cfg.ReportsRepoDir).Commit(doc.ConsultationID, "report.md", rendered.Data, message)
	if errors.Is(err, reportrepo.ErrNoChanges) {
		p.logger.Info("report unchanged", zap.String("consultation", doc.ConsultationID))
		return nil
	}
	if err != nil {
		return err
	}
	p.logger.Info("report committed", zap.String("hash", commit.Hash))
	return nil
}

func (p *publisher) mailer() *notify.Service {
	return notify.NewService(notify.Config{
		Host:     p.cfg.SMTPHost,
		Port:     p.cfg.SMTPPort,
		Username: p.cfg.SMTPUsername,
		Password: p.cfg.SMTPPassword,
		From:     p.cfg.SMTPFrom,
		FromName: p.cfg.SMTPFromName,
	})
}

func (p *publisher) sendSummary(doc report.Document) error {
	sent, err := p.mailer().SendSummary(p.cfg.NotifyTo, doc)
	if err != nil {
		return err
	}
	if sent {
		p.logger.Info("summary emailed", zap.Strings("to", p.cfg.NotifyTo))
	}
	return nil
}
