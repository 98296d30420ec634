package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"paperflow_backend/internal/model"
	"paperflow_backend/internal/util"

	"github.com/xeipuuv/gojsonschema"
)

// Extractor 外部文档理解模型的边界。
// 返回的条目未经业务校验；任何传输、配额或格式问题都以 ErrExtractionFailed 返回。
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) ([]model.ExtractedQuestion, error)
}

// ExtractorFunc 便于测试和组合
type ExtractorFunc func(ctx context.Context, data []byte, mimeType string) ([]model.ExtractedQuestion, error)

func (f ExtractorFunc) Extract(ctx context.Context, data []byte, mimeType string) ([]model.ExtractedQuestion, error) {
	return f(ctx, data, mimeType)
}

const ExtractionPrompt = `You are an assistant that extracts multiple-choice questions from an exam document.

Instructions:
- Extract every question in the order it appears in the document.
- For each question provide:
  - "question": the question text without its number.
  - "options": an array of strings with every option, labeled (A., B., ...).
  - "answer": the letter of the correct option if it is marked in the document, otherwise null.
  - "confidence": a number between 0 and 1 for how certain the answer detection is, or null.
  - "page": the 1-based page number the question starts on, or null.
- Return only a JSON array of objects in this format:

[
  {
    "question": "What is the capital of France?",
    "options": ["A. London", "B. Berlin", "C. Paris", "D. Madrid"],
    "answer": "C",
    "confidence": 0.92,
    "page": 1
  }
]

Make sure the output is valid JSON without extra text or markdown.`

// extractedItemSchema 只约束必需字段；可选字段在解码时单独处理
const extractedItemSchema = `{
  "type": "object",
  "required": ["question", "options"],
  "properties": {
    "question": {"type": "string", "minLength": 1},
    "options":  {"type": "array", "minItems": 2, "items": {"type": "string"}}
  }
}`

// extractedItem 可选字段保留原始 JSON，类型不对时只置空不丢弃
type extractedItem struct {
	Question   string          `json:"question"`
	Options    []string        `json:"options"`
	Answer     json.RawMessage `json:"answer"`
	Confidence json.RawMessage `json:"confidence"`
	Page       json.RawMessage `json:"page"`
}

var (
	itemSchemaOnce sync.Once
	itemSchema     *gojsonschema.Schema
	itemSchemaErr  error
)

func loadItemSchema() (*gojsonschema.Schema, error) {
	itemSchemaOnce.Do(func() {
		itemSchema, itemSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(extractedItemSchema))
	})
	return itemSchema, itemSchemaErr
}

// CleanJSONBlock 去掉模型输出外层的 markdown 代码块
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// 跳过语言标识行，如 json
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := strings.TrimSpace(text[:idx])
			if len(firstLine) < 20 && !strings.ContainsAny(firstLine, " {[") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// DecodeExtraction 把模型原始输出解码为候选题目。
// 顶层必须是数组或 {"questions": [...]}，否则整体失败；
// 题干或选项不符合结构时记录在 Problems 中交给调用方丢弃；
// 可选字段有问题只置空并记入 Warnings。
func DecodeExtraction(raw string) ([]model.ExtractedQuestion, error) {
	text := CleanJSONBlock(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty model output", util.ErrExtractionFailed)
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		var envelope struct {
			Questions *[]json.RawMessage `json:"questions"`
		}
		if envErr := json.Unmarshal([]byte(text), &envelope); envErr != nil || envelope.Questions == nil {
			return nil, fmt.Errorf("%w: model output is not a JSON array: %v", util.ErrExtractionFailed, err)
		}
		items = *envelope.Questions
	}

	schema, err := loadItemSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: load item schema: %v", util.ErrExtractionFailed, err)
	}

	out := make([]model.ExtractedQuestion, 0, len(items))
	for i, item := range items {
		q := model.ExtractedQuestion{Index: i}
		var entry extractedItem
		if err := json.Unmarshal(item, &entry); err != nil {
			q.Problems = append(q.Problems, "malformed entry: "+err.Error())
		} else {
			q.QuestionText = entry.Question
			q.Options = entry.Options
			q.DetectedAnswer = decodeOptional[string](&q, "answer", entry.Answer)
			q.Confidence = decodeOptional[float64](&q, "confidence", entry.Confidence)
			q.PageNumber = decodeOptional[int](&q, "page", entry.Page)
		}

		result, err := schema.Validate(gojsonschema.NewBytesLoader(item))
		if err != nil {
			q.Problems = append(q.Problems, "schema check failed: "+err.Error())
		} else if !result.Valid() {
			for _, desc := range result.Errors() {
				q.Problems = append(q.Problems, desc.String())
			}
		}
		out = append(out, NormalizeCandidate(q))
	}
	return out, nil
}

func decodeOptional[T any](q *model.ExtractedQuestion, field string, raw json.RawMessage) *T {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		q.Warnings = append(q.Warnings, fmt.Sprintf("%s: ignored invalid value %s", field, string(raw)))
		return nil
	}
	return &v
}

// NormalizeCandidate 把越界的可选字段置空并记录警告，条目本身保留。
// 置信度被置空后该题按需复核处理。
func NormalizeCandidate(q model.ExtractedQuestion) model.ExtractedQuestion {
	if c := q.Confidence; c != nil && (math.IsNaN(*c) || *c < 0 || *c > 1) {
		q.Warnings = append(q.Warnings, fmt.Sprintf("confidence: ignored out of range value %v", *c))
		q.Confidence = nil
	}
	if p := q.PageNumber; p != nil && *p < 1 {
		q.Warnings = append(q.Warnings, fmt.Sprintf("page: ignored out of range value %d", *p))
		q.PageNumber = nil
	}
	return q
}

// CandidateProblems 入库前的业务校验：题干非空且至少两个非空选项
func CandidateProblems(q model.ExtractedQuestion) []string {
	problems := append([]string(nil), q.Problems...)
	if strings.TrimSpace(q.QuestionText) == "" {
		problems = append(problems, "question text is empty")
	}
	nonBlank := 0
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) != "" {
			nonBlank++
		}
	}
	if nonBlank < 2 {
		problems = append(problems, fmt.Sprintf("expected at least 2 options, got %d", nonBlank))
	}
	return problems
}
