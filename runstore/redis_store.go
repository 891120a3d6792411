package runstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/arclabs/pilot/corelog"
	"github.com/arclabs/pilot/plan"
)

const (
	runKeyPrefix = "pilot:run:"
	defaultTTL   = 24 * time.Hour
)

type wireRecord struct {
	RunID     string                    `json:"run_id"`
	Started   time.Time                 `json:"started"`
	Ended     time.Time                 `json:"ended,omitempty"`
	HasEnded  bool                      `json:"has_ended"`
	StepState map[string]plan.StepState `json:"step_state"`
}

// RedisStore is a Redis-backed Store for sharing run state across
// processes: a JSON-serialized record under a prefixed key, one per run,
// with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger corelog.Logger
}

// NewRedisStore wraps client with runKeyPrefix and defaultTTL.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: runKeyPrefix, ttl: defaultTTL, logger: corelog.NoOpLogger{}}
}

// SetLogger configures the logger used to report swallowed errors.
func (s *RedisStore) SetLogger(l corelog.Logger) {
	if l == nil {
		l = corelog.NoOpLogger{}
	}
	s.logger = l
}

func (s *RedisStore) key(runID string) string {
	return s.prefix + runID
}

func (s *RedisStore) load(ctx context.Context, runID string) (wireRecord, bool) {
	raw, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if err != nil {
		return wireRecord{RunID: runID, StepState: make(map[string]plan.StepState)}, false
	}
	var rec wireRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.Warn("runstore: unmarshal failed", corelog.Fields{"error": err.Error(), "run_id": runID})
		return wireRecord{RunID: runID, StepState: make(map[string]plan.StepState)}, false
	}
	if rec.StepState == nil {
		rec.StepState = make(map[string]plan.StepState)
	}
	return rec, true
}

func (s *RedisStore) save(ctx context.Context, rec wireRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("runstore: marshal failed", corelog.Fields{"error": err.Error(), "run_id": rec.RunID})
		return
	}
	if err := s.client.Set(ctx, s.key(rec.RunID), raw, s.ttl).Err(); err != nil {
		s.logger.Warn("runstore: save failed", corelog.Fields{"error": err.Error(), "run_id": rec.RunID})
	}
}

// MarkRunStart captures the start time on the first call for runID.
func (s *RedisStore) MarkRunStart(runID string) (time.Time, *time.Time) {
	ctx := context.Background()
	rec, _ := s.load(ctx, runID)
	if rec.Started.IsZero() {
		rec.Started = time.Now()
		s.save(ctx, rec)
	}
	if rec.HasEnded {
		ended := rec.Ended
		return rec.Started, &ended
	}
	return rec.Started, nil
}

// MarkRunEnd records ended as runID's end time.
func (s *RedisStore) MarkRunEnd(runID string, ended time.Time) {
	ctx := context.Background()
	rec, _ := s.load(ctx, runID)
	rec.RunID = runID
	rec.Ended = ended
	rec.HasEnded = true
	s.save(ctx, rec)
}

// MarkStep records stepID's current state for runID.
func (s *RedisStore) MarkStep(runID, stepID string, state plan.StepState) {
	ctx := context.Background()
	rec, _ := s.load(ctx, runID)
	rec.RunID = runID
	rec.StepState[stepID] = state
	s.save(ctx, rec)
}

// Get returns the record for runID.
func (s *RedisStore) Get(runID string) (RunRecord, bool) {
	rec, ok := s.load(context.Background(), runID)
	if !ok {
		return RunRecord{}, false
	}
	return RunRecord{
		RunID:     rec.RunID,
		Started:   rec.Started,
		Ended:     rec.Ended,
		HasEnded:  rec.HasEnded,
		StepState: rec.StepState,
	}, true
}

var _ Store = (*RedisStore)(nil)
