package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Result は転写ジョブの成果を表します。
type Result struct {
	JobID          string         `json:"jobId"`
	Transcript     string         `json:"transcript"`
	Summary        string         `json:"summary"`
	Quiz           []QuizQuestion `json:"quiz"`
	SegmentCount   int            `json:"segmentCount"`
	FailedSegments int            `json:"failedSegments"`
}

// RunJob はジョブIDに対応する転写パイプラインを最後まで実行します。
// 分割 → ワーカーへのファンアウト → 時系列順の結合 → 要約・クイズ生成の順で進みます。
func (s *Service) RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("jobID is required")
	}

	ws := s.workspaceFor(jobID)
	manifest, err := loadManifest(ws.dir)
	if err != nil {
		return nil, err
	}
	if manifest.File.StoredName == "" {
		return nil, fmt.Errorf("manifest has no input file")
	}
	inputPath := filepath.Join(ws.inDir, manifest.File.StoredName)

	reportProgress(reporter, "segmenting", 10)
	segments, err := s.segmentMedia(ctx, inputPath, ws.chunksDir)
	if err != nil {
		return nil, err
	}
	reportProgress(reporter, "segmented", 25)

	transcript, failedSegments, err := s.dispatchSegments(ctx, segments, func(completed, total int) {
		reportProgress(reporter, "transcribing", 25+(60*completed)/total)
	})
	if err != nil {
		return nil, err
	}
	reportProgress(reporter, "merged", 85)

	summary, err := s.gateway.Summarize(ctx, transcript)
	if err != nil {
		return nil, newError("DERIVATION_FAILED", "要約の生成に失敗しました: "+err.Error(), err)
	}
	reportProgress(reporter, "summary", 92)

	quiz, err := s.gateway.GenerateQuiz(ctx, transcript, s.cfg.QuizQuestionCount)
	if err != nil {
		if !errors.Is(err, ErrMalformedQuiz) {
			return nil, newError("DERIVATION_FAILED", "クイズの生成に失敗しました: "+err.Error(), err)
		}
		// 構造不正のクイズはジョブを失敗させず、空のクイズとして完了させる
		s.logger.Printf("quiz output discarded job=%s: %v", jobID, err)
		quiz = nil
	}
	if quiz != nil {
		if err := validateQuiz(quiz); err != nil {
			s.logger.Printf("quiz output discarded job=%s: %v", jobID, err)
			quiz = nil
		} else {
			quiz = remapUniformAnswers(quiz)
		}
	}
	if quiz == nil {
		quiz = []QuizQuestion{}
	}
	reportProgress(reporter, "quiz", 97)

	return &Result{
		JobID:          jobID,
		Transcript:     transcript,
		Summary:        summary,
		Quiz:           quiz,
		SegmentCount:   len(segments),
		FailedSegments: failedSegments,
	}, nil
}
