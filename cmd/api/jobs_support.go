package main

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/media-scribe/internal/config"
	"github.com/yourusername/media-scribe/internal/jobs"
	"github.com/yourusername/media-scribe/internal/media"
	"github.com/yourusername/media-scribe/internal/progress"
)

// setupPipeline はサービス・ストア・スケジューラ・進捗ハブを組み立てます。
func setupPipeline(cfg *config.Config) (*media.Service, *jobs.Scheduler, jobs.Store, *progress.Hub, error) {
	ttlMinutes := cfg.JobExpireMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	ttl := time.Duration(ttlMinutes) * time.Minute

	store, err := setupStore(cfg, ttl)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	worker := media.NewHTTPWorkerClient(time.Duration(cfg.WorkerTimeoutSeconds) * time.Second)
	gateway := media.NewOpenAIGateway(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	service := media.NewService(cfg, worker, gateway, log.Default())

	hub := progress.NewHub()

	scheduler, err := jobs.NewScheduler(store, service, hub, log.Default())
	if err != nil {
		return nil, nil, nil, nil, err
	}

	return service, scheduler, store, hub, nil
}

// setupStore はRedisが設定されていればRedisストアを、無ければインメモリストアを返します。
func setupStore(cfg *config.Config, ttl time.Duration) (jobs.Store, error) {
	if cfg.JobStoreRedisURL == "" {
		log.Printf("JOB_STORE_REDIS_URL is empty, using in-memory job store")
		return jobs.NewMemoryStore(ttl), nil
	}

	opt, err := redis.ParseURL(cfg.JobStoreRedisURL)
	if err != nil {
		return nil, err
	}
	return jobs.NewRedisStore(redis.NewClient(opt), ttl), nil
}

// jobStatusHandler は GET /api/jobs/:id のハンドラーを返します。
// 終端状態のジョブは結果（またはエラー情報）を含めて返します。
func jobStatusHandler(store jobs.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if strings.TrimSpace(jobID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "jobId を指定してください。",
			})
			return
		}

		record, err := store.Get(c.Request.Context(), jobID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブ情報の取得に失敗しました。",
			})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しません。",
			})
			return
		}

		payload := gin.H{
			"jobId":  record.JobID,
			"status": record.Status,
			"progress": gin.H{
				"percent": record.Progress.Percent,
				"stage":   record.Progress.Stage,
				"message": record.Progress.Message,
			},
			"updatedAt": record.UpdatedAt,
		}
		if record.Result != nil {
			payload["result"] = record.Result
		}
		if record.Error != nil {
			payload["error"] = record.Error
		}

		c.JSON(http.StatusOK, payload)
	}
}
