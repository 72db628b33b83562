package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Text 将多个字段按换行拼接后计算 SHA-256，字段两端空白不参与计算。
// 用于审计日志 chain_hash。
func Text(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte("\n"))
		}
		_, _ = h.Write([]byte(strings.TrimSpace(p)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Bytes 返回内容的十六进制 SHA-256，用于文件与导出产物留痕。
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
