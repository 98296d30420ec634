package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"paperflow_backend/internal/config"
	"paperflow_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIExtractor_Extract(t *testing.T) {
	var captured chatCompletionRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		content := `{"questions": [{"question": "2+2=?", "options": ["A. 4", "B. 5"], "answer": "A", "confidence": 0.8}]}`
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"content": content}}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	ex := NewOpenAIExtractor(config.AIConfig{BaseURL: srv.URL + "/v1/", APIKey: "secret", Model: "test-model"})
	qs, err := ex.Extract(context.Background(), pngData, "image/png")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "2+2=?", qs[0].QuestionText)

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "test-model", captured.Model)
	assert.Equal(t, "json_object", captured.ResponseFormat["type"])
	require.Len(t, captured.Messages, 1)

	raw, err := json.Marshal(captured.Messages[0].Content)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"image_url"`)
	assert.Contains(t, string(raw), "data:image/png;base64,")
}

func TestOpenAIExtractor_PDFUsesFilePart(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		raw, _ := json.Marshal(req.Messages)
		body = string(raw)
		w.Write([]byte(`{"choices": [{"message": {"content": "{\"questions\": []}"}}]}`))
	}))
	defer srv.Close()

	ex := NewOpenAIExtractor(config.AIConfig{BaseURL: srv.URL})
	qs, err := ex.Extract(context.Background(), pdfData, util.MimePDF)
	require.NoError(t, err)
	assert.Empty(t, qs)
	assert.Contains(t, body, `"file_data":"data:application/pdf;base64,`)
}

func TestOpenAIExtractor_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"quota", http.StatusTooManyRequests, `{"error": {"message": "rate limited"}}`, "quota"},
		{"server error", http.StatusBadGateway, `upstream down`, "status 502"},
		{"no choices", http.StatusOK, `{"choices": []}`, "no choices"},
		{"api error", http.StatusOK, `{"error": {"message": "bad model"}}`, "bad model"},
		{"not json", http.StatusOK, `<html>`, "decode completion"},
		{"prose content", http.StatusOK, `{"choices": [{"message": {"content": "I can't help"}}]}`, "not a JSON array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ex := NewOpenAIExtractor(config.AIConfig{BaseURL: srv.URL})
			_, err := ex.Extract(context.Background(), pngData, "image/png")
			require.ErrorIs(t, err, util.ErrExtractionFailed)
			assert.True(t, strings.Contains(err.Error(), tt.message), err.Error())
		})
	}
}

func TestNewExtractor_OpenAIRequiresBaseURL(t *testing.T) {
	_, err := NewExtractor(context.Background(), &config.AIConfig{Provider: "openai"})
	assert.Error(t, err)

	ex, err := NewExtractor(context.Background(), &config.AIConfig{Provider: "openai", BaseURL: "http://localhost"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIExtractor{}, ex)
}
