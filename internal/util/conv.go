package util

import (
	"strconv"
	"strings"
)

// ParseOptionalInt 解析可选整数，空串返回 nil
func ParseOptionalInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// SplitTags 逗号分隔的标签，去空白去空项
func SplitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func StringPtr(s string) *string {
	return &s
}
