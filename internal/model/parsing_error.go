package model

import "gorm.io/datatypes"

// ParsingError 抽取条目的解析问题；Dropped 为 false 表示条目已保留，仅部分字段被置空
// swagger:model ParsingError
type ParsingError struct {
	UUIDBase
	TestPaperID  string         `gorm:"index;type:varchar(36);not null" json:"testPaperId"`
	SourceFileID string         `gorm:"type:varchar(36)" json:"sourceFileId"`
	EntryIndex   int            `json:"entryIndex"`
	Dropped      bool           `gorm:"default:false" json:"dropped"`
	ErrorMessage string         `gorm:"type:text" json:"errorMessage"`
	Details      datatypes.JSON `json:"details,omitempty"`
}

func (ParsingError) TableName() string {
	return "parsing_errors"
}
