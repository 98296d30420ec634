package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
	StorageGCS   = "gcs"
)

// 文件上传相关常量
const (
	MimeImage = "image/"
	MimePDF   = "application/pdf"
)

// 单个试卷文件大小上限
const MaxUploadBytes = 32 << 20

// lastError 文案，人工据此判断失败原因
const (
	MsgNoQuestionFile    = "question file not found"
	MsgStorageFetch      = "storage fetch failed"
	MsgNoQuestions       = "no questions detected"
	MsgProcessingTimeout = "processing timed out"
)
