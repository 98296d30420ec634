package model

import "time"

// swagger:model UploadProgress
type UploadProgress struct {
	TestPaperID        string    `gorm:"primaryKey;type:varchar(36)" json:"testPaperId"`
	TotalFiles         int       `gorm:"default:0" json:"totalFiles"`
	TotalPages         int       `gorm:"default:0" json:"totalPages"`
	QuestionsFound     int       `gorm:"default:0" json:"questionsFound"`
	QuestionsParsed    int       `gorm:"default:0" json:"questionsParsed"`
	QuestionsConfirmed int       `gorm:"default:0" json:"questionsConfirmed"`
	FailedCount        int       `gorm:"default:0" json:"failedCount"`
	LastUpdated        time.Time `gorm:"autoUpdateTime" json:"lastUpdated"`
}

func (UploadProgress) TableName() string {
	return "upload_progress"
}
