package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrMalformedQuiz はゲートウェイが構造的に不正なクイズを返したことを示します。
// このエラーはジョブ全体を失敗させず、空のクイズとして扱われます。
var ErrMalformedQuiz = errors.New("malformed quiz output")

// QuizQuestion は4択クイズの1問を表します。
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// DerivationGateway は結合済みテキストから要約とクイズを生成します。
type DerivationGateway interface {
	Summarize(ctx context.Context, text string) (string, error)
	GenerateQuiz(ctx context.Context, text string, questionCount int) ([]QuizQuestion, error)
}

// OpenAIGateway はOpenAI互換のchat completions APIを呼び出す実装です。
type OpenAIGateway struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewOpenAIGateway は OpenAIGateway を作成します。
func NewOpenAIGateway(apiKey, baseURL, model string) *OpenAIGateway {
	return &OpenAIGateway{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Summarize は結合テキストの短い要約を生成します。
func (g *OpenAIGateway) Summarize(ctx context.Context, text string) (string, error) {
	return g.complete(ctx,
		"Summarize clearly.",
		text,
	)
}

// GenerateQuiz は結合テキストから4択クイズを生成します。
// 応答がJSONとして解釈できない、または構造が不正な場合は ErrMalformedQuiz を返します。
func (g *OpenAIGateway) GenerateQuiz(ctx context.Context, text string, questionCount int) ([]QuizQuestion, error) {
	system := fmt.Sprintf(
		"You create multiple-choice quizzes. Respond with a JSON array of exactly %d objects, "+
			`each shaped as {"question": string, "options": [4 strings], "correctIndex": 0-3}. `+
			"Respond with the JSON array only, no prose.", questionCount)

	content, err := g.complete(ctx, system, text)
	if err != nil {
		return nil, err
	}

	quiz, err := parseQuiz(content)
	if err != nil {
		return nil, err
	}
	return quiz, nil
}

func (g *OpenAIGateway) complete(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway call failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse gateway response (status=%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("gateway returned error: %s", msg)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("gateway returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// parseQuiz はモデル応答からクイズ配列を取り出します。コードフェンス付きの応答も許容します。
func parseQuiz(content string) ([]QuizQuestion, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var quiz []QuizQuestion
	if err := json.Unmarshal([]byte(trimmed), &quiz); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuiz, err)
	}
	return quiz, nil
}

// validateQuiz はクイズの構造を検証します。使用前の検証に失敗した場合は ErrMalformedQuiz を返します。
func validateQuiz(quiz []QuizQuestion) error {
	if len(quiz) == 0 {
		return fmt.Errorf("%w: empty question set", ErrMalformedQuiz)
	}
	for i, q := range quiz {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("%w: question %d has no text", ErrMalformedQuiz, i)
		}
		if len(q.Options) != 4 {
			return fmt.Errorf("%w: question %d has %d options", ErrMalformedQuiz, i, len(q.Options))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex > 3 {
			return fmt.Errorf("%w: question %d has correctIndex %d", ErrMalformedQuiz, i, q.CorrectIndex)
		}
	}
	return nil
}

// remapUniformAnswers は全問の正解位置が同一の場合に先頭の設問の正解位置をずらします。
// 正解の選択肢を隣のスロットと入れ替えるため、設問の内容自体は変わりません。
func remapUniformAnswers(quiz []QuizQuestion) []QuizQuestion {
	if len(quiz) < 2 {
		return quiz
	}
	first := quiz[0].CorrectIndex
	for _, q := range quiz[1:] {
		if q.CorrectIndex != first {
			return quiz
		}
	}

	q := quiz[0]
	swapped := (q.CorrectIndex + 1) % 4
	options := append([]string(nil), q.Options...)
	options[q.CorrectIndex], options[swapped] = options[swapped], options[q.CorrectIndex]
	quiz[0].Options = options
	quiz[0].CorrectIndex = swapped
	return quiz
}
