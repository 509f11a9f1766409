// Package jobs はジョブの状態管理と逐次実行スケジューラを提供します。
package jobs

import "context"

// Store はジョブIDをキーとした状態ストアです。
// 未知のIDに対する Get は (nil, nil) を返します。
// 各ジョブのエントリへはスケジューラのみが書き込むため、キー間の整合性は保証しません。
type Store interface {
	Get(ctx context.Context, jobID string) (*Record, error)
	Upsert(ctx context.Context, record *Record) error
	UpdateProgress(ctx context.Context, jobID string, progress ProgressInfo) error
	MarkProcessing(ctx context.Context, jobID string) error
	MarkDone(ctx context.Context, jobID string, result *JobResult) error
	MarkFailed(ctx context.Context, jobID string, errInfo *ErrorInfo) error
}
