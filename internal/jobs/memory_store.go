package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore は外部サービス無しで動作するインメモリのジョブ状態ストアです。
// Redisが設定されていない環境（ローカル開発・テスト）で使用します。
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	records map[string]*Record
	now     func() time.Time
}

// NewMemoryStore は MemoryStore を作成します。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Get はジョブ情報を取得します。期限切れのエントリは削除して (nil, nil) を返します。
func (s *MemoryStore) Get(ctx context.Context, jobID string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[jobID]
	if !ok {
		return nil, nil
	}
	if !record.ExpiresAt.IsZero() && s.now().After(record.ExpiresAt) {
		delete(s.records, jobID)
		return nil, nil
	}

	clone := *record
	return &clone, nil
}

// Upsert はジョブ情報を保存します（存在しない場合は作成）。
func (s *MemoryStore) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	clone := *record
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	if clone.ExpiresAt.IsZero() && s.ttl > 0 {
		clone.ExpiresAt = clone.CreatedAt.Add(s.ttl)
	}
	s.records[clone.JobID] = &clone
	return nil
}

// UpdateProgress は進捗を更新します。
func (s *MemoryStore) UpdateProgress(ctx context.Context, jobID string, progress ProgressInfo) error {
	return s.updatePartial(jobID, func(record *Record) {
		record.Progress = progress
	})
}

// MarkProcessing はジョブを実行中へ遷移させます。
func (s *MemoryStore) MarkProcessing(ctx context.Context, jobID string) error {
	return s.updatePartial(jobID, func(record *Record) {
		record.Status = StatusProcessing
		record.Progress = ProgressInfo{
			Percent: 5,
			Stage:   "processing",
		}
	})
}

// MarkDone はジョブ完了時の情報を保存します。
func (s *MemoryStore) MarkDone(ctx context.Context, jobID string, result *JobResult) error {
	return s.updatePartial(jobID, func(record *Record) {
		record.Status = StatusDone
		record.Progress = ProgressInfo{
			Percent: 100,
			Stage:   "completed",
		}
		record.Result = result
		record.Error = nil
	})
}

// MarkFailed はジョブ失敗時の情報を保存します。
func (s *MemoryStore) MarkFailed(ctx context.Context, jobID string, errInfo *ErrorInfo) error {
	return s.updatePartial(jobID, func(record *Record) {
		record.Status = StatusError
		record.Progress = ProgressInfo{
			Percent: 100,
			Stage:   "failed",
		}
		if errInfo != nil {
			record.Error = errInfo
		}
	})
}

func (s *MemoryStore) updatePartial(jobID string, mutate func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[jobID]
	if !ok {
		return fmt.Errorf("job not found: %s", jobID)
	}
	clone := *record
	mutate(&clone)
	clone.UpdatedAt = s.now().UTC()
	s.records[jobID] = &clone
	return nil
}
