// Package media はメディアファイルの分割・転写・テキスト派生のパイプラインを提供します。
package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/yourusername/media-scribe/internal/config"
)

// Service はメディア処理パイプラインを提供します。
type Service struct {
	cfg     *config.Config
	worker  WorkerClient
	gateway DerivationGateway
	logger  *log.Logger
	now     func() time.Time
}

// NewService は Service を初期化します。
func NewService(cfg *config.Config, worker WorkerClient, gateway DerivationGateway, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		cfg:     cfg,
		worker:  worker,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
}

type storedFile struct {
	path         string
	originalName string
	size         int64
	mimeType     string
}

func (s *Service) workspaceFor(jobID string) workspace {
	dir := filepath.Join(s.cfg.WorkspaceDir, jobID)
	return workspace{
		jobID:     jobID,
		dir:       dir,
		inDir:     filepath.Join(dir, "in"),
		chunksDir: filepath.Join(dir, "chunks"),
	}
}

func (s *Service) createWorkspace() (workspace, error) {
	// ジョブIDにはUUIDを採用する。時刻ベースのIDは同時受付時に衝突しうる。
	ws := s.workspaceFor(uuid.NewString())
	for _, dir := range []string{ws.inDir, ws.chunksDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return workspace{}, fmt.Errorf("failed to create workspace: %w", err)
		}
	}
	return ws, nil
}

// storeMultipartFile はアップロードされたファイルを検証しつつ作業ディレクトリへ保存します。
func (s *Service) storeMultipartFile(ctx context.Context, file *multipart.FileHeader, destDir string) (storedFile, error) {
	if err := ctx.Err(); err != nil {
		return storedFile{}, err
	}
	if s.cfg.MaxFileSize > 0 && file.Size > s.cfg.MaxFileSize {
		return storedFile{}, newError("LIMIT_EXCEEDED", "アップロードファイルのサイズ上限を超えています。", nil)
	}

	src, err := file.Open()
	if err != nil {
		return storedFile{}, newError("INVALID_INPUT", "アップロードファイルを開けませんでした。", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(file.Filename))
	destPath := filepath.Join(destDir, "source"+ext)
	dest, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return storedFile{}, fmt.Errorf("failed to create upload file: %w", err)
	}

	written, err := io.Copy(dest, src)
	if closeErr := dest.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return storedFile{}, fmt.Errorf("failed to store upload file: %w", err)
	}

	mtype, err := mimetype.DetectFile(destPath)
	if err != nil {
		return storedFile{}, fmt.Errorf("failed to detect file type: %w", err)
	}
	if !isSupportedMediaType(mtype.String()) {
		return storedFile{}, newError("INVALID_INPUT",
			fmt.Sprintf("対応していないファイル形式です (received: %s)。動画または音声ファイルを選択してください。", mtype.String()), nil)
	}

	return storedFile{
		path:         destPath,
		originalName: file.Filename,
		size:         written,
		mimeType:     mtype.String(),
	}, nil
}

func isSupportedMediaType(mime string) bool {
	return strings.HasPrefix(mime, "video/") || strings.HasPrefix(mime, "audio/")
}

// PrepareTranscribeJob はアップロードを受け付け、非同期実行用のジョブを準備します。
func (s *Service) PrepareTranscribeJob(ctx context.Context, file *multipart.FileHeader, subscriptionID string) (*JobManifest, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if file == nil {
		return nil, newError("INVALID_INPUT", "メディアファイルを選択してください。", nil)
	}

	ws, err := s.createWorkspace()
	if err != nil {
		return nil, err
	}

	stored, err := s.storeMultipartFile(ctx, file, ws.inDir)
	if err != nil {
		_ = removeDir(ws.dir)
		return nil, err
	}

	manifest := &JobManifest{
		JobID:          ws.jobID,
		SubscriptionID: subscriptionID,
		File: JobFile{
			StoredName:   filepath.Base(stored.path),
			OriginalName: stored.originalName,
			Size:         stored.size,
			MIMEType:     stored.mimeType,
		},
		CreatedAt: s.now().UTC(),
	}
	if err := writeManifest(ws.dir, manifest); err != nil {
		_ = removeDir(ws.dir)
		return nil, fmt.Errorf("ジョブマニフェストの保存に失敗しました: %w", err)
	}

	return manifest, nil
}

// DiscardJob は実行前のジョブの作業ディレクトリを破棄します。
func (s *Service) DiscardJob(jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("jobID is required")
	}
	return removeDir(s.workspaceFor(jobID).dir)
}

// CleanupJob はジョブ終了後（成功・失敗を問わず）に作業ディレクトリを削除します。
// 削除失敗はジョブの論理的な結果に影響しないため、ログ出力のみ行います。
func (s *Service) CleanupJob(jobID string) {
	if strings.TrimSpace(jobID) == "" {
		return
	}
	if err := removeDir(s.workspaceFor(jobID).dir); err != nil {
		s.logger.Printf("workspace cleanup failed job=%s: %v", jobID, err)
	}
}
