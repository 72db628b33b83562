package id

import "github.com/google/uuid"

// New 生成带前缀的唯一 ID：prefix + "_" + UUIDv7。
// UUIDv7 以毫秒时间戳开头，按字典序即按生成时间排序，便于日志阅读与审计排序。
func New(prefix string) string {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	return prefix + "_" + u.String()
}
