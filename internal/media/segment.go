package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
)

// Segment は入力ファイルを時間で区切った1チャンクを表します。
// Index は元ファイル内での時系列順の位置を示します。
type Segment struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

// segmentMedia は外部のffmpegを起動して入力ファイルをチャンク列へ分割します。
// 返却するセグメント列は元ファイルの時系列順に一致します。
func (s *Service) segmentMedia(ctx context.Context, inputPath, chunksDir string) ([]Segment, error) {
	pattern := filepath.Join(chunksDir, "chunk_%03d"+filepath.Ext(inputPath))
	args := ffmpegSegmentArgs(inputPath, pattern, s.cfg.SegmentSeconds)

	cmd := exec.CommandContext(ctx, s.cfg.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, newError("SEGMENTATION_FAILED",
			fmt.Sprintf("ffmpegによる分割に失敗しました: %s", stderr.String()), err)
	}

	entries, err := os.ReadDir(chunksDir)
	if err != nil {
		return nil, newError("SEGMENTATION_FAILED", "分割結果ディレクトリの読み取りに失敗しました。", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	// チャンク名は連番パターンなので辞書順ソートが時系列順に一致する
	sort.Strings(names)

	segments := make([]Segment, len(names))
	for i, name := range names {
		segments[i] = Segment{Index: i, Path: filepath.Join(chunksDir, name)}
	}
	return segments, nil
}

// ffmpegSegmentArgs は時間分割用のffmpeg引数を構築します。
func ffmpegSegmentArgs(inputPath, outputPattern string, segmentSeconds int) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-f", "segment",
		"-segment_time", strconv.Itoa(segmentSeconds),
		"-reset_timestamps", "1",
		"-c", "copy",
		outputPattern,
	}
}
