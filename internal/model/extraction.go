package model

// ExtractedQuestion 抽取服务返回的候选题目（未经校验）
type ExtractedQuestion struct {
	Index          int      `json:"-"`
	QuestionText   string   `json:"question"`
	Options        []string `json:"options"`
	DetectedAnswer *string  `json:"answer,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	PageNumber     *int     `json:"page,omitempty"`

	// 解码/模式校验阶段发现的问题，非空表示该条目不可用
	Problems []string `json:"-"`
	// 可选字段被置空的记录，不影响条目保留
	Warnings []string `json:"-"`
}
