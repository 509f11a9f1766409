package media

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/yourusername/media-scribe/internal/config"
)

type stubWorker struct {
	mu    sync.Mutex
	calls int
	fn    func(endpoint, segmentPath string) (string, error)
}

func (w *stubWorker) Transcribe(ctx context.Context, endpoint string, segmentPath string) (string, error) {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()
	if w.fn != nil {
		return w.fn(endpoint, segmentPath)
	}
	return "", nil
}

func (w *stubWorker) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

type stubGateway struct {
	summary    string
	summaryErr error
	quiz       []QuizQuestion
	quizErr    error
}

func (g *stubGateway) Summarize(ctx context.Context, text string) (string, error) {
	return g.summary, g.summaryErr
}

func (g *stubGateway) GenerateQuiz(ctx context.Context, text string, questionCount int) ([]QuizQuestion, error) {
	return g.quiz, g.quizErr
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		MaxFileSize:       10 << 20,
		WorkspaceDir:      t.TempDir(),
		FFmpegPath:        "ffmpeg",
		SegmentSeconds:    300,
		WorkerEndpoints:   []string{"http://w1", "http://w2", "http://w3"},
		DispatchPolicy:    config.DispatchBestEffort,
		QuizQuestionCount: 3,
	}
}

func newTestService(t *testing.T, cfg *config.Config, worker WorkerClient, gateway DerivationGateway) *Service {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	if worker == nil {
		worker = &stubWorker{}
	}
	if gateway == nil {
		gateway = &stubGateway{}
	}
	return NewService(cfg, worker, gateway, nil)
}

// writeFakeTool writes an executable shell script standing in for ffmpeg.
func writeFakeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("failed to write fake tool: %v", err)
	}
	return path
}

// fakeSegmentingTool creates n chunk files from the output pattern (last argument).
func fakeSegmentingTool(t *testing.T, n int) string {
	t.Helper()
	script := `for a; do last=$a; done
i=0
while [ "$i" -lt ` + strconv.Itoa(n) + ` ]; do
  : > "$(printf "$last" "$i")"
  i=$((i+1))
done
exit 0
`
	return writeFakeTool(t, script)
}

// wavBytes is a minimal RIFF/WAVE header so mimetype detection reports audio.
func wavBytes() []byte {
	data := []byte("RIFF\x24\x08\x00\x00WAVEfmt ")
	return append(data, make([]byte, 32)...)
}

func multipartFileHeader(t *testing.T, field, filename string, data []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fileWriter.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("failed to parse multipart form: %v", err)
	}
	files := req.MultipartForm.File[field]
	if len(files) == 0 {
		t.Fatalf("no file parsed for field %q", field)
	}
	return files[0]
}
