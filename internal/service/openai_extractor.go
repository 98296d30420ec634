package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"paperflow_backend/internal/config"
	"paperflow_backend/internal/model"
	"paperflow_backend/internal/util"
)

// OpenAIExtractor 兼容 OpenAI chat/completions 协议的抽取实现
type OpenAIExtractor struct {
	config config.AIConfig
	client *http.Client
}

func NewOpenAIExtractor(cfg config.AIConfig) *OpenAIExtractor {
	return &OpenAIExtractor{config: cfg, client: &http.Client{}}
}

type chatContentPart struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	ImageURL *chatImageURL     `json:"image_url,omitempty"`
	File     *chatFileAttached `json:"file,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatFileAttached struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (e *OpenAIExtractor) Extract(ctx context.Context, data []byte, mimeType string) ([]model.ExtractedQuestion, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	// json_object 模式只允许对象，这里要求外层包一层 questions
	prompt := ExtractionPrompt + "\n\nWrap the array in an object: {\"questions\": [...]}."
	parts := []chatContentPart{{Type: "text", Text: prompt}}
	if util.IsPDF(mimeType) {
		parts = append(parts, chatContentPart{Type: "file", File: &chatFileAttached{Filename: "paper.pdf", FileData: dataURL}})
	} else {
		parts = append(parts, chatContentPart{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}})
	}

	reqBody := chatCompletionRequest{
		Model:          e.config.Model,
		Messages:       []chatMessage{{Role: "user", Content: parts}},
		Temperature:    0.1,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", strings.TrimRight(e.config.BaseURL, "/")+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrExtractionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: model call timed out", util.ErrExtractionFailed)
		}
		return nil, fmt.Errorf("%w: %v", util.ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: model quota exceeded: %s", util.ErrExtractionFailed, string(body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: AI API error (status %d): %s", util.ErrExtractionFailed, resp.StatusCode, string(body))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: decode completion: %v", util.ErrExtractionFailed, err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("%w: %s", util.ErrExtractionFailed, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%w: AI returned no choices", util.ErrExtractionFailed)
	}

	return DecodeExtraction(result.Choices[0].Message.Content)
}

// NewExtractor 按 ai.provider 选择实现
func NewExtractor(ctx context.Context, cfg *config.AIConfig) (Extractor, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("ai.base_url is required for openai provider")
		}
		return NewOpenAIExtractor(*cfg), nil
	default:
		return NewGeminiExtractor(ctx, cfg)
	}
}
