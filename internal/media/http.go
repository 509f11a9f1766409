package media

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TranscribeService は転写ジョブの準備と破棄を提供します。
type TranscribeService interface {
	PrepareTranscribeJob(ctx context.Context, file *multipart.FileHeader, subscriptionID string) (*JobManifest, error)
	DiscardJob(jobID string) error
}

// JobScheduler は準備済みジョブをキューへ投入するためのインターフェースです。
type JobScheduler interface {
	Enqueue(ctx context.Context, manifest *JobManifest) (string, error)
}

// TranscribeHandler は POST /api/transcribe のハンドラーを返します。
// 受付に成功すると処理開始前に 202 と jobId を返します。
func TranscribeHandler(svc TranscribeService, scheduler JobScheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "multipart/form-data でメディアファイルを送信してください。",
			})
			return
		}
		defer form.RemoveAll()

		file, err := extractMediaFile(form)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": err.Error(),
			})
			return
		}

		subscriptionID := strings.TrimSpace(c.PostForm("subscriptionId"))

		manifest, err := svc.PrepareTranscribeJob(c.Request.Context(), file, subscriptionID)
		if err != nil {
			respondWithError(c, err)
			return
		}

		if _, err := scheduler.Enqueue(c.Request.Context(), manifest); err != nil {
			if cleanupErr := svc.DiscardJob(manifest.JobID); cleanupErr != nil {
				err = fmt.Errorf("%w (cleanup failed: %v)", err, cleanupErr)
			}
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"jobId":  manifest.JobID,
			"status": "queued",
		})
	}
}

func extractMediaFile(form *multipart.Form) (*multipart.FileHeader, error) {
	if form == nil {
		return nil, errors.New("メディアファイルを選択してください。")
	}
	if file := form.File["file"]; len(file) > 0 {
		return file[0], nil
	}
	if file := form.File["video"]; len(file) > 0 {
		return file[0], nil
	}
	if file := form.File["media"]; len(file) > 0 {
		return file[0], nil
	}
	return nil, errors.New("メディアファイルを選択してください。")
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		switch apiErr.Code {
		case "LIMIT_EXCEEDED":
			status = http.StatusRequestEntityTooLarge
		case "SEGMENTATION_FAILED", "DERIVATION_FAILED", "WORKER_FAILED", "INTERNAL_ERROR":
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}
