package util

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectMimeType 按文件内容嗅探 MIME 类型
func DetectMimeType(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsImage 检测是否为图片
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, MimeImage)
}

func IsPDF(mimeType string) bool {
	return mimeType == MimePDF
}

// NormalizeMimeType 去掉参数部分并转小写，如 "image/png; charset=binary"
func NormalizeMimeType(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// ValidateDocument 校验试卷文件：非空，且内容为 PDF 或图片。
// 声明类型与内容不一致时以内容为准。
func ValidateDocument(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if len(data) > MaxUploadBytes {
		return "", fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, MaxUploadBytes)
	}
	detected := NormalizeMimeType(DetectMimeType(data))
	if IsPDF(detected) || IsImage(detected) {
		return detected, nil
	}
	declared = NormalizeMimeType(declared)
	return "", fmt.Errorf("%w: unsupported file type %q (declared %q)", ErrInvalidInput, detected, declared)
}

// SanitizeFilename 去掉路径与空格，用于存储 key
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, " ", "-")
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
