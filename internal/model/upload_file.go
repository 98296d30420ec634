package model

// FileRole 上传文件角色
type FileRole string

const (
	RoleQuestions FileRole = "questions"
	RoleAnswers   FileRole = "answers"
)

// swagger:model UploadFile
type UploadFile struct {
	UUIDBase
	TestPaperID string   `gorm:"type:varchar(36);not null;uniqueIndex:idx_paper_role" json:"testPaperId"`
	OwnerID     string   `gorm:"index;type:varchar(64);not null" json:"ownerId"`
	Role        FileRole `gorm:"size:20;not null;uniqueIndex:idx_paper_role" json:"role"`
	StorageKey  string   `gorm:"size:512;not null" json:"storageKey"`
	Filename    string   `gorm:"size:255" json:"filename"`
	MimeType    string   `gorm:"size:100" json:"mimeType"`
	SizeBytes   int64    `json:"sizeBytes"`
	PageCount   *int     `json:"pageCount"` // 处理阶段回填
}

func (UploadFile) TableName() string {
	return "upload_files"
}
