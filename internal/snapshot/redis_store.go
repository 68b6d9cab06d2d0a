// Package snapshot keeps a summary of each audit run in Redis so the next
// run can tell whether the findings changed.
package snapshot

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"themeaudit/internal/report"
)

// ErrNoSnapshot means no earlier run was recorded for the consultation.
var ErrNoSnapshot = errors.New("no snapshot recorded")

const historyLimit = 50

// Summary is what we keep of a run.
type Summary struct {
	RunID             string    `json:"run_id"`
	ConsultationID    string    `json:"consultation_id"`
	ConsultationTitle string    `json:"consultation_title"`
	GeneratedAt       time.Time `json:"generated_at"`
	QuestionsChecked  int       `json:"questions_checked"`
	DuplicateGroups   int       `json:"duplicate_groups"`
	FlaggedMappings   int       `json:"flagged_mappings"`
	FlagCount         int       `json:"flag_count"`
	Fingerprint       string    `json:"fingerprint"`
}

func NewSummary(doc report.Document) Summary {
	return Summary{
		RunID:             doc.RunID,
		ConsultationID:    doc.ConsultationID,
		ConsultationTitle: doc.ConsultationTitle,
		GeneratedAt:       doc.GeneratedAt,
		QuestionsChecked:  len(doc.Questions),
		DuplicateGroups:   doc.DuplicateGroups,
		FlaggedMappings:   doc.FlaggedMappings,
		FlagCount:         len(doc.Flags()),
		Fingerprint:       Fingerprint(doc),
	}
}

// Fingerprint is a BLAKE2b-256 digest of the ordered flags and duplicate
// groups. Run metadata is excluded so equal findings hash equal.
func Fingerprint(doc report.Document) string {
	h, _ := blake2b.New256(nil)
	for _, question := range doc.Questions {
		h.Write([]byte("q" + strconv.Itoa(question.Number) + "\n"))
		for _, group := range question.DuplicateGroups {
			h.Write([]byte("g|" + group.AnswerID + "|" + group.ThemeID + "|" + strconv.Itoa(group.Count) + "\n"))
		}
		for _, flag := range question.Flags {
			h.Write([]byte("f|" + flag.MappingID + "|" + flag.Reason + "\n"))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RedisStore implements snapshot storage using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed snapshot store
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: "themeaudit:",
		ttl:    ttl,
	}
}

func (s *RedisStore) latestKey(consultationID string) string {
	return s.prefix + "snapshot:" + consultationID
}

func (s *RedisStore) historyKey(consultationID string) string {
	return s.prefix + "runs:" + consultationID
}

// Save records summary as the latest run of its consultation and appends it
// to the consultation's run history.
func (s *RedisStore) Save(ctx context.Context, summary Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	historyKey := s.historyKey(summary.ConsultationID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.latestKey(summary.ConsultationID), payload, s.ttl)
	pipe.LPush(ctx, historyKey, payload)
	pipe.LTrim(ctx, historyKey, 0, historyLimit-1)
	pipe.Expire(ctx, historyKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recently saved summary for a consultation.
func (s *RedisStore) Latest(ctx context.Context, consultationID string) (Summary, error) {
	payload, err := s.client.Get(ctx, s.latestKey(consultationID)).Result()
	if errors.Is(err, redis.Nil) {
		return Summary{}, ErrNoSnapshot
	}
	if err != nil {
		return Summary{}, fmt.Errorf("lookup snapshot: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal([]byte(payload), &summary); err != nil {
		return Summary{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return summary, nil
}

// History lists saved summaries for a consultation, newest first.
func (s *RedisStore) History(ctx context.Context, consultationID string, limit int) ([]Summary, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}
	payloads, err := s.client.LRange(ctx, s.historyKey(consultationID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	items := make([]Summary, 0, len(payloads))
	for _, payload := range payloads {
		var summary Summary
		if err := json.Unmarshal([]byte(payload), &summary); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		items = append(items, summary)
	}
	return items, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
