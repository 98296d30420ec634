package model

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus 试卷处理任务状态
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobReview     JobStatus = "review"
	JobFailed     JobStatus = "failed"
)

// Valid 是否为已知状态
func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobProcessing, JobReview, JobFailed:
		return true
	}
	return false
}

// CanTransition 状态迁移表：queued→processing, failed→processing, processing→review, processing→failed
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobQueued:
		return to == JobProcessing
	case JobFailed:
		return to == JobProcessing
	case JobProcessing:
		return to == JobReview || to == JobFailed
	case JobReview:
		return false
	}
	return false
}

// ClaimableStatuses 可以进入 processing 的来源状态
func ClaimableStatuses() []string {
	var out []string
	for _, s := range []JobStatus{JobQueued, JobProcessing, JobReview, JobFailed} {
		if s.CanTransition(JobProcessing) {
			out = append(out, string(s))
		}
	}
	return out
}

// swagger:model TestPaper
type TestPaper struct {
	UUIDBase
	OwnerID             string                      `gorm:"index;type:varchar(64);not null" json:"ownerId"`
	Title               string                      `gorm:"size:255;not null" json:"title"`
	Subject             string                      `gorm:"size:100" json:"subject"`
	Status              JobStatus                   `gorm:"size:20;not null;default:'queued';index" json:"status"`
	LastError           *string                     `gorm:"type:text" json:"lastError"`
	DurationMinutes     *int                        `json:"durationMinutes,omitempty"`
	Difficulty          string                      `gorm:"size:20" json:"difficulty,omitempty"`
	Description         string                      `gorm:"type:text" json:"description,omitempty"`
	Tags                datatypes.JSONSlice[string] `json:"tags"`
	ProcessingStartedAt *time.Time                  `gorm:"index" json:"processingStartedAt,omitempty"`

	Files     []UploadFile     `gorm:"foreignKey:TestPaperID;constraint:OnDelete:CASCADE" json:"files,omitempty"`
	Questions []ParsedQuestion `gorm:"foreignKey:TestPaperID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

func (TestPaper) TableName() string {
	return "test_papers"
}
