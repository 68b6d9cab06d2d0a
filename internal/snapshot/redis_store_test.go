package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"themeaudit/internal/report"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func sampleDocument(runID string, reasons ...string) report.Document {
	flags := make([]report.Flag, 0, len(reasons))
	for _, reason := range reasons {
		flags = append(flags, report.Flag{MappingID: "tm-1", Reason: reason, QuestionNumber: 1})
	}
	return report.Document{
		RunID:             runID,
		ConsultationID:    "c-1",
		ConsultationTitle: "Energy",
		GeneratedAt:       time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC),
		QuestionCount:     2,
		DuplicateGroups:   1,
		FlaggedMappings:   1,
		Questions: []report.Question{{
			Number:          1,
			DuplicateGroups: []report.Group{{AnswerID: "a-1", ThemeID: "t-1", Count: 2}},
			Flags:           flags,
		}},
	}
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("not-a-url", time.Hour); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveAndLatest(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if _, err := store.Latest(ctx, "c-1"); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Latest() before save error = %v, want ErrNoSnapshot", err)
	}

	summary := NewSummary(sampleDocument("run_1", "missing_stance"))
	if err := store.Save(ctx, summary); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Latest(ctx, "c-1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.RunID != "run_1" || got.Fingerprint != summary.Fingerprint || got.FlagCount != 1 {
		t.Fatalf("Latest() = %+v, want %+v", got, summary)
	}
}

func TestSnapshotExpires(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Save(ctx, NewSummary(sampleDocument("run_1"))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.FastForward(2 * time.Hour)

	if _, err := store.Latest(ctx, "c-1"); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected expired snapshot, got %v", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	for _, runID := range []string{"run_1", "run_2", "run_3"} {
		if err := store.Save(ctx, NewSummary(sampleDocument(runID))); err != nil {
			t.Fatalf("Save(%s) failed: %v", runID, err)
		}
	}

	history, err := store.History(ctx, "c-1", 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 || history[0].RunID != "run_3" || history[1].RunID != "run_2" {
		t.Fatalf("History() = %+v", history)
	}
}

func TestFingerprintIgnoresRunMetadata(t *testing.T) {
	a := sampleDocument("run_1", "not_user_audited", "missing_stance")
	b := sampleDocument("run_2", "not_user_audited", "missing_stance")
	b.GeneratedAt = b.GeneratedAt.Add(time.Hour)
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("expected equal fingerprints for equal findings")
	}

	c := sampleDocument("run_3", "missing_stance", "not_user_audited")
	if Fingerprint(a) == Fingerprint(c) {
		t.Fatal("expected flag order to change the fingerprint")
	}
	if len(Fingerprint(a)) != 64 {
		t.Fatalf("expected 256-bit hex digest, got %q", Fingerprint(a))
	}
}

func TestCompare(t *testing.T) {
	clean := NewSummary(sampleDocument("run_1"))
	clean.DuplicateGroups = 0
	flagged := NewSummary(sampleDocument("run_2", "missing_stance"))

	if change := Compare(nil, clean); !change.First || change.Changed {
		t.Fatalf("Compare(nil, clean) = %+v", change)
	}
	if change := Compare(nil, flagged); !change.First || !change.Changed {
		t.Fatalf("Compare(nil, flagged) = %+v", change)
	}

	same := NewSummary(sampleDocument("run_3", "missing_stance"))
	if change := Compare(&flagged, same); change.Changed || change.FlagDelta != 0 {
		t.Fatalf("Compare(flagged, same) = %+v", change)
	}

	worse := NewSummary(sampleDocument("run_4", "missing_stance", "not_user_audited"))
	if change := Compare(&flagged, worse); !change.Changed || change.FlagDelta != 1 {
		t.Fatalf("Compare(flagged, worse) = %+v", change)
	}
}
