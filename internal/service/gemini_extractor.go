package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"paperflow_backend/internal/config"
	"paperflow_backend/internal/model"
	"paperflow_backend/internal/util"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GeminiExtractor 把文件以内联 blob 形式交给 Gemini，要求 JSON 输出
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

func NewGeminiExtractor(ctx context.Context, cfg *config.AIConfig) (*GeminiExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiExtractor{client: client, model: cfg.Model}, nil
}

func (e *GeminiExtractor) Extract(ctx context.Context, data []byte, mimeType string) ([]model.ExtractedQuestion, error) {
	m := e.client.GenerativeModel(e.model)
	m.SetTemperature(0.1)
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, genai.Text(ExtractionPrompt), genai.Blob{MIMEType: mimeType, Data: data})
	if err != nil {
		return nil, classifyModelError(err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrExtractionFailed, err)
	}
	return DecodeExtraction(text)
}

func (e *GeminiExtractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response (finish reason %v)", candidate.FinishReason)
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

// classifyModelError 超时与配额单独标注，便于 lastError 区分
func classifyModelError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: model call timed out", util.ErrExtractionFailed)
	case status.Code(err) == codes.ResourceExhausted:
		return fmt.Errorf("%w: model quota exceeded: %v", util.ErrExtractionFailed, err)
	case status.Code(err) == codes.DeadlineExceeded:
		return fmt.Errorf("%w: model call timed out", util.ErrExtractionFailed)
	}
	return fmt.Errorf("%w: %v", util.ErrExtractionFailed, err)
}
