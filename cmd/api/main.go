// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/media-scribe/internal/config"
	"github.com/yourusername/media-scribe/internal/jobs"
	"github.com/yourusername/media-scribe/internal/media"
	"github.com/yourusername/media-scribe/internal/progress"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
	}
	router.Use(cors.New(corsConfig))

	// パイプラインとスケジューラの配線
	service, scheduler, store, hub, err := setupPipeline(cfg)
	if err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}
	scheduler.Start(context.Background())

	// ルーティングの設定
	setupRoutes(router, service, scheduler, store, hub)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s, workers: %d)", addr, cfg.GinMode, len(cfg.WorkerEndpoints))
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "media-scribe-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループの配線を行います。
func setupRoutes(router *gin.Engine, service *media.Service, scheduler *jobs.Scheduler, store jobs.Store, hub *progress.Hub) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	api := router.Group("/api")
	{
		api.POST("/transcribe", media.TranscribeHandler(service, scheduler))
		api.GET("/jobs/:id", jobStatusHandler(store))
		api.GET("/progress/:subscriptionId", progress.Handler(hub, log.Default()))
	}
}
