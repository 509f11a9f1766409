package jobs

import (
	"time"

	"github.com/yourusername/media-scribe/internal/media"
)

// Status はジョブの実行状態を表します。
// 遷移は queued → processing → {done|error} の一方向のみです。
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// ProgressInfo は進捗の補足情報を表します。
type ProgressInfo struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorInfo はジョブ失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JobResult はジョブ完了時の成果物を保持します。
type JobResult struct {
	Transcript     string               `json:"transcript"`
	Summary        string               `json:"summary"`
	Quiz           []media.QuizQuestion `json:"quiz"`
	SegmentCount   int                  `json:"segmentCount"`
	FailedSegments int                  `json:"failedSegments"`
}

// Record はジョブの現在状態を表します。
// ジョブ本体の作業リソースが解放された後も、この情報は独立して参照できます。
type Record struct {
	JobID          string       `json:"jobId"`
	SubscriptionID string       `json:"subscriptionId,omitempty"`
	Status         Status       `json:"status"`
	Progress       ProgressInfo `json:"progress"`
	Result         *JobResult   `json:"result,omitempty"`
	Error          *ErrorInfo   `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	ExpiresAt      time.Time    `json:"expiresAt"`
}
