package media

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/media-scribe/internal/config"
)

// WorkerAssignment は1プールメンバーへ割り当てたセグメントの連続部分列です。
type WorkerAssignment struct {
	Endpoint string
	Segments []Segment
}

// planAssignments はセグメント列を固定プールへ静的に分配します。
// per = ceil(N/W) の連続スライスをプール順に割り当てます。負荷やタイミングには依存しません。
func planAssignments(segments []Segment, endpoints []string) []WorkerAssignment {
	w := len(endpoints)
	assignments := make([]WorkerAssignment, 0, w)
	if w == 0 {
		return assignments
	}

	per := (len(segments) + w - 1) / w
	for i, endpoint := range endpoints {
		start := i * per
		end := start + per
		if start > len(segments) {
			start = len(segments)
		}
		if end > len(segments) {
			end = len(segments)
		}
		assignments = append(assignments, WorkerAssignment{
			Endpoint: endpoint,
			Segments: segments[start:end],
		})
	}
	return assignments
}

// dispatchSegments はセグメントをワーカープールへ並行送信し、時系列順に結合したテキストを返します。
// パーティション同士、およびパーティション内のセグメント同士はいずれも並行に実行されます。
// 完了順序に関わらず、結合はセグメントIndex順で行われます。
func (s *Service) dispatchSegments(ctx context.Context, segments []Segment, onSegmentDone func(completed, total int)) (string, int, error) {
	if len(segments) == 0 {
		// セグメントが無ければワーカーを一切呼ばない
		return "", 0, nil
	}

	assignments := planAssignments(segments, s.cfg.WorkerEndpoints)

	texts := make([]string, len(segments))
	var (
		mu        sync.Mutex
		completed int
		failed    int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, assignment := range assignments {
		if len(assignment.Segments) == 0 {
			// W > N の場合、余ったプールメンバーにはネットワーク呼び出しを発行しない
			continue
		}
		for _, seg := range assignment.Segments {
			endpoint := assignment.Endpoint
			seg := seg
			g.Go(func() error {
				text, err := s.worker.Transcribe(gctx, endpoint, seg.Path)
				if err != nil {
					if s.cfg.DispatchPolicy == config.DispatchFailFast {
						return newError("WORKER_FAILED",
							"セグメントの転写に失敗しました: "+err.Error(), err)
					}
					// best-effort: 失敗セグメントは空文字のプレースホルダとして残す
					s.logger.Printf("worker call failed endpoint=%s segment=%d: %v", endpoint, seg.Index, err)
					text = ""
				}

				mu.Lock()
				texts[seg.Index] = text
				if err != nil {
					failed++
				}
				completed++
				// コールバックはロック内で呼び、進捗率の単調増加を保証する
				if onSegmentDone != nil {
					onSegmentDone(completed, len(segments))
				}
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return "", 0, err
	}

	return strings.Join(texts, " "), failed, nil
}
