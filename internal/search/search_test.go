package search

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	meili "github.com/meilisearch/meilisearch-go"

	"themeaudit/internal/report"
)

func TestRecordsDeduplicatesReasonPerMapping(t *testing.T) {
	doc := report.Document{
		RunID:          "run_1",
		ConsultationID: "c-1",
		Questions: []report.Question{{
			Number: 2,
			Flags: []report.Flag{
				{MappingID: "tm-1", Reason: "not_user_audited", QuestionNumber: 2, ThemeName: "Cost"},
				{MappingID: "tm-1", Reason: "missing_stance", QuestionNumber: 2, ThemeName: "Cost"},
				{MappingID: "tm-1", Reason: "missing_stance", QuestionNumber: 2, ThemeName: "Cost"},
			},
		}},
	}

	records := Records(doc)
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	want := []string{"c-1__tm-1__not_user_audited", "c-1__tm-1__missing_stance"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("record ids mismatch (-want +got):\n%s", diff)
	}
	if records[0].RunID != "run_1" || records[0].QuestionNumber != 2 || records[0].ThemeName != "Cost" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestRecordIDReplacesDisallowedCharacters(t *testing.T) {
	got := recordID("7f1c:uuid", "a.b/c", "+")
	if got != "7f1c-uuid__a-b-c__-" {
		t.Fatalf("recordID() = %q", got)
	}
}

func TestHitToResult(t *testing.T) {
	hit := meili.Hit{
		"id":             json.RawMessage(`"c-1__tm-1__missing_stance"`),
		"mappingId":      json.RawMessage(`"tm-1"`),
		"reason":         json.RawMessage(`"missing_stance"`),
		"themeName":      json.RawMessage(`"Cost of living"`),
		"consultationId": json.RawMessage(`"c-1"`),
		"questionNumber": json.RawMessage(`3`),
		"_formatted":     json.RawMessage(`{"themeName":"**Cost** of living","questionNumber":"3"}`),
	}

	got := hitToResult(hit)
	want := Result{
		ID:             "c-1__tm-1__missing_stance",
		MappingID:      "tm-1",
		Reason:         "missing_stance",
		ThemeName:      "Cost of living",
		QuestionNumber: 3,
		ConsultationID: "c-1",
		Snippet:        "**Cost** of living",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("hitToResult() mismatch (-want +got):\n%s", diff)
	}
}

func TestHitToResultWithoutFormatted(t *testing.T) {
	got := hitToResult(meili.Hit{"themeName": json.RawMessage(`"Safety"`)})
	if got.Snippet != "Safety" {
		t.Fatalf("Snippet = %q, want fallback to theme name", got.Snippet)
	}
}

func TestBuildFilters(t *testing.T) {
	got := buildFilters(Query{ConsultationID: "c-1", Reason: "non_addition_history"})
	want := []string{`consultationId = "c-1"`, `reason = "non_addition_history"`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("buildFilters() mismatch (-want +got):\n%s", diff)
	}
	if filters := buildFilters(Query{Text: "cost"}); len(filters) != 0 {
		t.Fatalf("expected no filters, got %v", filters)
	}
}

func TestUnreachableMeiliIsUnhealthy(t *testing.T) {
	m := NewMeili("http://127.0.0.1:1", "", nil)
	if m.Healthy() {
		t.Fatal("expected unhealthy client")
	}
	if _, _, err := m.IndexConcerns(report.Document{ConsultationID: "c-1"}); err == nil {
		t.Fatal("expected IndexConcerns to fail while unhealthy")
	}
	if _, _, err := m.Search(Query{Text: "cost"}); err == nil {
		t.Fatal("expected Search to fail while unhealthy")
	}
}
