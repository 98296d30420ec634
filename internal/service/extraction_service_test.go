package service

import (
	"testing"

	"paperflow_backend/internal/model"
	"paperflow_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[1, 2]\n```", "[1, 2]"},
		{"bare fence", "```\n[1]\n```", "[1]"},
		{"fence on one line", "```[1]```", "[1]"},
		{"surrounding space", "  \n[]\n  ", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONBlock(tt.in))
		})
	}
}

func TestDecodeExtraction(t *testing.T) {
	raw := "```json\n" + `[
  {"question": "1+1=?", "options": ["A. 2", "B. 3"], "answer": "A", "confidence": 0.9, "page": 1},
  {"question": "No answer", "options": ["A. x", "B. y"], "answer": null, "confidence": null}
]` + "\n```"

	qs, err := DecodeExtraction(raw)
	require.NoError(t, err)
	require.Len(t, qs, 2)

	assert.Equal(t, 0, qs[0].Index)
	assert.Equal(t, "1+1=?", qs[0].QuestionText)
	assert.Equal(t, []string{"A. 2", "B. 3"}, qs[0].Options)
	require.NotNil(t, qs[0].DetectedAnswer)
	assert.Equal(t, "A", *qs[0].DetectedAnswer)
	require.NotNil(t, qs[0].Confidence)
	assert.InDelta(t, 0.9, *qs[0].Confidence, 1e-9)
	require.NotNil(t, qs[0].PageNumber)
	assert.Equal(t, 1, *qs[0].PageNumber)
	assert.Empty(t, qs[0].Problems)

	assert.Equal(t, 1, qs[1].Index)
	assert.Nil(t, qs[1].DetectedAnswer)
	assert.Nil(t, qs[1].Confidence)
	assert.Empty(t, qs[1].Problems)
}

func TestDecodeExtraction_Envelope(t *testing.T) {
	qs, err := DecodeExtraction(`{"questions": [{"question": "Q", "options": ["A", "B"]}]}`)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "Q", qs[0].QuestionText)

	qs, err = DecodeExtraction(`[]`)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestDecodeExtraction_Malformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"Sorry, I cannot read this document.",
		`{"items": []}`,
		`[{"question": "truncated"`,
	} {
		_, err := DecodeExtraction(raw)
		assert.ErrorIs(t, err, util.ErrExtractionFailed, "input %q", raw)
	}
}

func TestDecodeExtraction_EntryProblems(t *testing.T) {
	raw := `[
  {"question": "ok", "options": ["A", "B"]},
  {"question": "one option", "options": ["A"]},
  {"question": "", "options": ["A", "B"]},
  {"question": 42, "options": ["A", "B"]},
  "not an object"
]`
	qs, err := DecodeExtraction(raw)
	require.NoError(t, err)
	require.Len(t, qs, 5)

	assert.Empty(t, qs[0].Problems)
	for i := 1; i < 5; i++ {
		assert.NotEmpty(t, qs[i].Problems, "entry %d", i)
		assert.Equal(t, i, qs[i].Index)
	}
}

func TestDecodeExtraction_BadOptionalFieldsAreNulled(t *testing.T) {
	raw := `[
  {"question": "Q1", "options": ["A", "B"], "confidence": 1.2},
  {"question": "Q2", "options": ["A", "B"], "answer": 2},
  {"question": "Q3", "options": ["A", "B"], "page": "3"},
  {"question": "Q4", "options": ["A", "B"], "page": 0},
  {"question": "Q5", "options": ["A", "B"], "confidence": -0.1, "page": 2.5, "answer": "B"}
]`
	qs, err := DecodeExtraction(raw)
	require.NoError(t, err)
	require.Len(t, qs, 5)

	for i, q := range qs {
		assert.Empty(t, q.Problems, "entry %d", i)
		assert.Empty(t, CandidateProblems(q), "entry %d", i)
		assert.NotEmpty(t, q.Warnings, "entry %d", i)
	}
	assert.Nil(t, qs[0].Confidence)
	assert.Contains(t, qs[0].Warnings[0], "confidence")
	assert.Nil(t, qs[1].DetectedAnswer)
	assert.Contains(t, qs[1].Warnings[0], "answer")
	assert.Nil(t, qs[2].PageNumber)
	assert.Nil(t, qs[3].PageNumber)

	assert.Nil(t, qs[4].Confidence)
	assert.Nil(t, qs[4].PageNumber)
	require.NotNil(t, qs[4].DetectedAnswer)
	assert.Equal(t, "B", *qs[4].DetectedAnswer)
	assert.Len(t, qs[4].Warnings, 2)
}

func TestNormalizeCandidate(t *testing.T) {
	page := 3
	q := NormalizeCandidate(model.ExtractedQuestion{
		QuestionText: "Q", Options: []string{"A", "B"}, Confidence: floatPtr(0.4), PageNumber: &page,
	})
	assert.Empty(t, q.Warnings)
	require.NotNil(t, q.Confidence)
	require.NotNil(t, q.PageNumber)

	zero := 0
	q = NormalizeCandidate(model.ExtractedQuestion{
		QuestionText: "Q", Options: []string{"A", "B"}, Confidence: floatPtr(3), PageNumber: &zero,
	})
	assert.Nil(t, q.Confidence)
	assert.Nil(t, q.PageNumber)
	assert.Len(t, q.Warnings, 2)

	// 再次处理不重复记录
	again := NormalizeCandidate(q)
	assert.Len(t, again.Warnings, 2)
}

func TestCandidateProblems(t *testing.T) {
	tests := []struct {
		name string
		q    model.ExtractedQuestion
		ok   bool
	}{
		{"valid", model.ExtractedQuestion{QuestionText: "Q", Options: []string{"A", "B"}}, true},
		{"blank text", model.ExtractedQuestion{QuestionText: "  ", Options: []string{"A", "B"}}, false},
		{"blank option", model.ExtractedQuestion{QuestionText: "Q", Options: []string{"A", " "}}, false},
		{"no options", model.ExtractedQuestion{QuestionText: "Q"}, false},
		{"decode problem", model.ExtractedQuestion{QuestionText: "Q", Options: []string{"A", "B"}, Problems: []string{"bad"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := CandidateProblems(tt.q)
			if tt.ok {
				assert.Empty(t, problems)
			} else {
				assert.NotEmpty(t, problems)
			}
		})
	}
}
