package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/yourusername/media-scribe/internal/media"
)

// PipelineRunner はジョブ1件のパイプライン実行と後片付けを提供します。
type PipelineRunner interface {
	RunJob(ctx context.Context, jobID string, reporter media.ProgressReporter) (*media.Result, error)
	CleanupJob(jobID string)
}

// ProgressPublisher は購読IDへ進捗イベントを配信します。
type ProgressPublisher interface {
	Publish(subscriptionID string, percent int, message string)
}

// Scheduler はジョブを受け付け、到着順に1件ずつ実行します。
//
// キューはミューテックスで保護したスライス、実行は単一のコンシューマゴルーチンで行います。
// ブールフラグによる多重起動防止は競合しやすいため採用しません。
// 同時に processing 状態となるジョブは全体で常に1件以下です。
type Scheduler struct {
	store     Store
	runner    PipelineRunner
	publisher ProgressPublisher
	logger    *log.Logger

	mu    sync.Mutex
	queue []*media.JobManifest
	wake  chan struct{}
}

// NewScheduler は Scheduler を初期化します。publisher は nil でも構いません。
func NewScheduler(store Store, runner PipelineRunner, publisher ProgressPublisher, logger *log.Logger) (*Scheduler, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		store:     store,
		runner:    runner,
		publisher: publisher,
		logger:    logger,
		wake:      make(chan struct{}, 1),
	}, nil
}

// Start はコンシューマゴルーチンを起動します。ctx のキャンセルで停止します。
func (s *Scheduler) Start(ctx context.Context) {
	go s.consume(ctx)
}

// Enqueue はジョブをキュー末尾へ追加し、queued 状態を記録してジョブIDを返します。
// キューへの追加は常に成功します。
func (s *Scheduler) Enqueue(ctx context.Context, manifest *media.JobManifest) (string, error) {
	if manifest == nil {
		return "", fmt.Errorf("manifest is nil")
	}
	if manifest.JobID == "" {
		return "", fmt.Errorf("manifest.JobID is required")
	}

	record := &Record{
		JobID:          manifest.JobID,
		SubscriptionID: manifest.SubscriptionID,
		Status:         StatusQueued,
		Progress: ProgressInfo{
			Percent: 5,
			Stage:   "queued",
		},
	}
	if err := s.store.Upsert(ctx, record); err != nil {
		return "", err
	}
	s.publish(manifest.SubscriptionID, 5, "upload accepted")

	s.mu.Lock()
	s.queue = append(s.queue, manifest)
	s.mu.Unlock()

	// コンシューマが待機中であれば起こす。実行中なら信号は既に立っているか不要。
	select {
	case s.wake <- struct{}{}:
	default:
	}

	return manifest.JobID, nil
}

// QueueLength は現在キューで待機中のジョブ数を返します。
func (s *Scheduler) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		// 起床1回につきキューを空になるまで処理する
		for {
			manifest := s.pop()
			if manifest == nil {
				break
			}
			s.runOne(ctx, manifest)
		}
	}
}

func (s *Scheduler) pop() *media.JobManifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	head := s.queue[0]
	s.queue = s.queue[1:]
	return head
}

// runOne はジョブ1件をパイプラインの最後まで実行します。
// ジョブ内のあらゆる失敗はここで捕捉して error 状態として記録し、次のジョブへ進みます。
// 作業ディレクトリの削除は結果に関わらず必ず1回行います。
func (s *Scheduler) runOne(ctx context.Context, manifest *media.JobManifest) {
	jobID := manifest.JobID
	subID := manifest.SubscriptionID

	defer s.runner.CleanupJob(jobID)

	if err := s.store.MarkProcessing(ctx, jobID); err != nil {
		s.logger.Printf("failed to mark job processing job=%s: %v", jobID, err)
	}

	s.logger.Printf("starting job %s (%s)", jobID, manifest.File.OriginalName)

	reporter := func(stage string, percent int) {
		if err := s.store.UpdateProgress(ctx, jobID, ProgressInfo{
			Percent: percent,
			Stage:   stage,
		}); err != nil {
			s.logger.Printf("failed to update progress job=%s: %v", jobID, err)
		}
		s.publish(subID, percent, stage)
	}

	result, err := s.runner.RunJob(ctx, jobID, reporter)
	if err != nil {
		s.failJobWithError(ctx, jobID, subID, err)
		return
	}

	if err := s.store.MarkDone(ctx, jobID, &JobResult{
		Transcript:     result.Transcript,
		Summary:        result.Summary,
		Quiz:           result.Quiz,
		SegmentCount:   result.SegmentCount,
		FailedSegments: result.FailedSegments,
	}); err != nil {
		s.logger.Printf("failed to mark job done job=%s: %v", jobID, err)
	}
	s.publish(subID, 100, "completed")
	s.logger.Printf("finished job %s", jobID)
}

func (s *Scheduler) failJobWithError(ctx context.Context, jobID, subID string, err error) {
	errInfo := &ErrorInfo{
		Code:    "INTERNAL_ERROR",
		Message: err.Error(),
	}
	var apiErr *media.Error
	if errors.As(err, &apiErr) {
		errInfo.Code = apiErr.Code
		errInfo.Message = apiErr.Message
	}

	if storeErr := s.store.MarkFailed(ctx, jobID, errInfo); storeErr != nil {
		s.logger.Printf("failed to mark job failed job=%s: %v", jobID, storeErr)
	}
	s.publish(subID, 100, "failed: "+errInfo.Message)
	s.logger.Printf("job %s failed: %v", jobID, err)
}

func (s *Scheduler) publish(subID string, percent int, message string) {
	// 購読IDが無いジョブの進捗イベントはバッファせず破棄する
	if s.publisher == nil || subID == "" {
		return
	}
	s.publisher.Publish(subID, percent, message)
}
