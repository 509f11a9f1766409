// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DispatchPolicy はワーカー呼び出し失敗時の扱いを表します。
type DispatchPolicy string

const (
	// DispatchBestEffort は失敗セグメントを空文字として許容します。
	DispatchBestEffort DispatchPolicy = "best-effort"
	// DispatchFailFast は最初のワーカー失敗でジョブ全体を失敗させます。
	DispatchFailFast DispatchPolicy = "fail-fast"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ファイル制限
	MaxFileSize int64 // アップロードファイルの最大サイズ（バイト）

	// ジョブ設定
	WorkspaceDir     string // ジョブ作業ディレクトリのベースパス
	JobExpireMinutes int    // ジョブ結果の有効期限（分）
	JobStoreRedisURL string // 結果ストア用Redis接続URL（空の場合はインメモリ）

	// 分割設定
	FFmpegPath     string // ffmpeg実行ファイルのパス
	SegmentSeconds int    // 1セグメントあたりの目標秒数

	// ワーカープール設定
	WorkerEndpoints      []string       // 固定ワーカープールのエンドポイント一覧
	WorkerTimeoutSeconds int            // ワーカー1呼び出しあたりのタイムアウト（秒）
	DispatchPolicy       DispatchPolicy // セグメント失敗時のポリシー

	// テキスト派生設定
	OpenAIAPIKey      string // OpenAI互換APIのキー
	OpenAIBaseURL     string // OpenAI互換APIのベースURL
	OpenAIModel       string // 要約・クイズ生成に使用するモデル名
	QuizQuestionCount int    // クイズの設問数
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// ファイル制限
		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 524288000), // 500MB

		// ジョブ設定
		WorkspaceDir:     getEnv("WORKSPACE_DIR", filepath.Join(os.TempDir(), "media-scribe")),
		JobExpireMinutes: getEnvAsInt("JOB_EXPIRE_MINUTES", 60),
		JobStoreRedisURL: getEnv("JOB_STORE_REDIS_URL", ""),

		// 分割設定
		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
		SegmentSeconds: getEnvAsInt("SEGMENT_SECONDS", 300),

		// ワーカープール設定
		WorkerEndpoints:      splitAndTrim(getEnv("WORKER_ENDPOINTS", "http://worker:5001")),
		WorkerTimeoutSeconds: getEnvAsInt("WORKER_TIMEOUT_SECONDS", 600),
		DispatchPolicy:       DispatchPolicy(getEnv("DISPATCH_POLICY", string(DispatchBestEffort))),

		// テキスト派生設定
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
		QuizQuestionCount: getEnvAsInt("QUIZ_QUESTION_COUNT", 5),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.DispatchPolicy {
	case DispatchBestEffort, DispatchFailFast:
	default:
		return fmt.Errorf("DISPATCH_POLICY must be best-effort or fail-fast (received: %s)", c.DispatchPolicy)
	}

	if len(c.WorkerEndpoints) == 0 {
		return fmt.Errorf("WORKER_ENDPOINTS is required")
	}
	if c.SegmentSeconds <= 0 {
		return fmt.Errorf("SEGMENT_SECONDS must be positive")
	}

	// ローカル開発ではAPIキーは任意
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required in release mode")
		}
		if c.FFmpegPath == "" {
			return fmt.Errorf("FFMPEG_PATH is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// splitAndTrim はカンマ区切りの文字列を空要素を除いて分割します。
func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
