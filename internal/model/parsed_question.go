package model

import (
	"time"

	"gorm.io/datatypes"
)

// ReviewStatus 单题审核结论
type ReviewStatus string

const (
	ReviewPending      ReviewStatus = "pending"
	ReviewApproved     ReviewStatus = "approved"
	ReviewRejected     ReviewStatus = "rejected"
	ReviewNeedsChanges ReviewStatus = "needs_changes"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected, ReviewNeedsChanges:
		return true
	}
	return false
}

// swagger:model ParsedQuestion
type ParsedQuestion struct {
	UUIDBase
	TestPaperID         string                      `gorm:"type:varchar(36);not null;uniqueIndex:idx_paper_seq" json:"testPaperId"`
	SourceFileID        string                      `gorm:"type:varchar(36);index" json:"sourceFileId"`
	PageNumber          *int                        `json:"pageNumber"`
	SequenceInDoc       int                         `gorm:"not null;uniqueIndex:idx_paper_seq" json:"sequenceInDoc"`
	QuestionText        string                      `gorm:"type:text;not null" json:"questionText"`
	Options             datatypes.JSONSlice[string] `gorm:"not null" json:"options"`
	DetectedAnswer      *string                     `gorm:"size:32" json:"detectedAnswer"`
	DetectionConfidence *float64                    `json:"detectionConfidence"`
	NeedsReview         bool                        `gorm:"default:false" json:"needsReview"`
	ReviewStatus        ReviewStatus                `gorm:"size:20;not null;default:'pending';index" json:"reviewStatus"`
	ReviewerID          *string                     `gorm:"type:varchar(64)" json:"reviewerId"`
	ReviewedAt          *time.Time                  `json:"reviewedAt"`
	ReviewNotes         string                      `gorm:"type:text" json:"reviewNotes,omitempty"`
}

func (ParsedQuestion) TableName() string {
	return "parsed_questions"
}
