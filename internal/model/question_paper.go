package model

import "gorm.io/datatypes"

// QuestionPaper 审核通过后发布的试卷快照，发布后不再修改
// swagger:model QuestionPaper
type QuestionPaper struct {
	UUIDBase
	OwnerID        string `gorm:"index;type:varchar(64);not null" json:"ownerId"`
	Title          string `gorm:"size:255;not null" json:"title"`
	Subject        string `gorm:"size:100" json:"subject,omitempty"`
	SourceJobID    string `gorm:"index;type:varchar(36);not null" json:"sourceJobId"`
	TotalQuestions int    `gorm:"not null" json:"totalQuestions"`

	Questions []PaperQuestion `gorm:"foreignKey:PaperID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

func (QuestionPaper) TableName() string {
	return "question_papers"
}

// swagger:model PaperQuestion
type PaperQuestion struct {
	UUIDBase
	PaperID       string                      `gorm:"index;type:varchar(36);not null" json:"paperId"`
	Order         int                         `gorm:"column:position;not null" json:"order"`
	QuestionText  string                      `gorm:"type:text;not null" json:"questionText"`
	Options       datatypes.JSONSlice[string] `gorm:"not null" json:"options"`
	CorrectAnswer *string                     `gorm:"size:32" json:"correctAnswer"`
}

func (PaperQuestion) TableName() string {
	return "paper_questions"
}
