package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"themeaudit/internal/report"
)

const (
	idxConcerns       = "themeaudit_concerns"
	codeIndexNotFound = "index_not_found"
	taskPollInterval  = 50 * time.Millisecond
	taskTimeout       = 30 * time.Second
)

// Meili indexes and searches concerns via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	logger  *zap.Logger
}

// NewMeili creates a Meilisearch client and configures the concerns index.
// An unreachable server leaves the client unhealthy rather than failing.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logger,
	}

	if _, err := m.client.Health(); err != nil {
		logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
		return m
	}
	m.healthy.Store(true)
	m.configureIndex()
	return m
}

func (m *Meili) configureIndex() {
	info, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxConcerns,
		PrimaryKey: "id",
	})
	if err == nil {
		_, err = m.waitForTask(info)
	}
	if err != nil {
		m.logger.Debug("create index (may already exist)", zap.String("index", idxConcerns), zap.Error(err))
	}

	index := m.client.Index(idxConcerns)
	filterable := []interface{}{"consultationId", "reason", "themeKey", "questionNumber", "runId"}
	info, err = index.UpdateFilterableAttributes(&filterable)
	if err == nil {
		_, err = m.waitForTask(info)
	}
	if err != nil {
		m.logger.Warn("update filterable attributes", zap.String("index", idxConcerns), zap.Error(err))
	}
	searchable := []string{"themeName", "mappingId", "answerId", "reason", "stance"}
	info, err = index.UpdateSearchableAttributes(&searchable)
	if err == nil {
		_, err = m.waitForTask(info)
	}
	if err != nil {
		m.logger.Warn("update searchable attributes", zap.String("index", idxConcerns), zap.Error(err))
	}
}

// Healthy reports whether the last request reached Meilisearch.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexConcerns replaces the consultation's documents with the run's flags.
// It returns the number of records indexed and of documents cleared first.
func (m *Meili) IndexConcerns(doc report.Document) (int, int, error) {
	if !m.healthy.Load() {
		return 0, 0, fmt.Errorf("meilisearch unhealthy")
	}

	index := m.client.Index(idxConcerns)
	removed := 0
	info, err := index.DeleteDocumentsByFilter(fmt.Sprintf("consultationId = %q", doc.ConsultationID), nil)
	var task *meili.Task
	if err == nil {
		task, err = m.waitForTask(info)
	}
	switch {
	case err == nil:
		removed = int(task.Details.DeletedDocuments)
	case isIndexNotFound(err):
		// nothing indexed yet
	default:
		return 0, 0, fmt.Errorf("clear indexed concerns: %w", err)
	}

	records := Records(doc)
	if len(records) == 0 {
		return 0, removed, nil
	}
	info, err = index.AddDocuments(records, nil)
	if err == nil {
		_, err = m.waitForTask(info)
	}
	if err != nil {
		return 0, removed, fmt.Errorf("index concerns: %w", err)
	}
	return len(records), removed, nil
}

// taskError is a Meilisearch task that finished as failed.
type taskError struct {
	UID     int64
	Code    string
	Message string
}

func (e *taskError) Error() string {
	return fmt.Sprintf("task %d failed: %s (%s)", e.UID, e.Message, e.Code)
}

// waitForTask blocks until the task is processed. Failed tasks are returned
// as *taskError.
func (m *Meili) waitForTask(info *meili.TaskInfo) (*meili.Task, error) {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	task, err := m.client.WaitForTaskWithContext(ctx, info.TaskUID, taskPollInterval)
	if err != nil {
		return nil, fmt.Errorf("wait for task %d: %w", info.TaskUID, err)
	}
	if task.Status == meili.TaskStatusFailed {
		return task, &taskError{UID: info.TaskUID, Code: task.Error.Code, Message: task.Error.Message}
	}
	return task, nil
}

func isIndexNotFound(err error) bool {
	var failed *taskError
	if errors.As(err, &failed) {
		return failed.Code == codeIndexNotFound
	}
	var apiErr *meili.Error
	if errors.As(err, &apiErr) {
		return apiErr.MeilisearchApiError.Code == codeIndexNotFound
	}
	return false
}

// Search queries the concerns index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}
	sr := &meili.SearchRequest{
		IndexUID:              idxConcerns,
		Query:                 q.Text,
		Limit:                 limit,
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"themeName"},
		HighlightPreTag:       "**",
		HighlightPostTag:      "**",
	}
	if filters := buildFilters(q); len(filters) > 0 {
		sr.Filter = filters
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: []*meili.SearchRequest{sr}})
	if isIndexNotFound(err) {
		return nil, 0, nil
	}
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	var results []Result
	total := 0
	for _, res := range resp.Results {
		total += int(res.EstimatedTotalHits)
		for _, hit := range res.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func buildFilters(q Query) []string {
	var filters []string
	if q.ConsultationID != "" {
		filters = append(filters, fmt.Sprintf("consultationId = %q", q.ConsultationID))
	}
	if q.Reason != "" {
		filters = append(filters, fmt.Sprintf("reason = %q", q.Reason))
	}
	return filters
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:             decodeString(hit, "id"),
		MappingID:      decodeString(hit, "mappingId"),
		Reason:         decodeString(hit, "reason"),
		ThemeName:      decodeString(hit, "themeName"),
		ConsultationID: decodeString(hit, "consultationId"),
	}
	if raw, ok := hit["questionNumber"]; ok {
		_ = json.Unmarshal(raw, &r.QuestionNumber)
	}
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "themeName"), r.ThemeName)
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
