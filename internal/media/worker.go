package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// WorkerClient は1セグメントを1ワーカーエンドポイントへ送信し、抽出テキストを返します。
type WorkerClient interface {
	Transcribe(ctx context.Context, endpoint string, segmentPath string) (string, error)
}

// HTTPWorkerClient はHTTP経由でワーカーを呼び出す実装です。
// タイムアウトは1呼び出し単位で適用されます。
type HTTPWorkerClient struct {
	client *http.Client
}

// NewHTTPWorkerClient は呼び出しタイムアウト付きのクライアントを作成します。
func NewHTTPWorkerClient(timeout time.Duration) *HTTPWorkerClient {
	return &HTTPWorkerClient{
		client: &http.Client{Timeout: timeout},
	}
}

type workerResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Transcribe はセグメントのバイナリをワーカーへPOSTし、転写テキストを取得します。
func (c *HTTPWorkerClient) Transcribe(ctx context.Context, endpoint string, segmentPath string) (string, error) {
	data, err := os.ReadFile(segmentPath)
	if err != nil {
		return "", fmt.Errorf("failed to read segment: %w", err)
	}

	url := strings.TrimRight(endpoint, "/") + "/process"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("worker call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read worker response: %w", err)
	}

	var payload workerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to parse worker response (status=%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := payload.Error
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("worker returned error: %s", msg)
	}

	return payload.Text, nil
}
