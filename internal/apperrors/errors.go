// Package apperrors 定义进度看板核心的错误分类。
//
// 校验类错误（UnknownRegion/OutOfRange/InvalidReportData/MalformedInput）在
// ProgressState、ReportStore、聚合器边界直接拒绝输入；PersistenceError 包装
// 存储层故障原样上抛，不做重试也不回落默认值。
package apperrors

import (
	"fmt"
	"strings"
)

// UnknownRegionError 表示区域编码不在目录中。
type UnknownRegionError struct {
	Code string
}

func (e UnknownRegionError) Error() string {
	return fmt.Sprintf("unknown region code: %q", e.Code)
}

// OutOfRangeError 表示百分比不在 [0,100] 区间。
type OutOfRangeError struct {
	Code  string
	Value int
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("progress for %s out of range [0,100]: %d", e.Code, e.Value)
}

// InvalidReportDataError 表示报告载荷或 ReplaceAll 映射不合法。
// Cause 指向第一条具体违规（未知区域或越界值）。
type InvalidReportDataError struct {
	Report string
	Cause  error
}

func (e InvalidReportDataError) Error() string {
	if e.Report == "" {
		return fmt.Sprintf("invalid report data: %v", e.Cause)
	}
	return fmt.Sprintf("invalid report data in %q: %v", e.Report, e.Cause)
}

func (e InvalidReportDataError) Unwrap() error { return e.Cause }

// MalformedInputError 表示原始部署表缺少必需列，仅中止本次渲染。
type MalformedInputError struct {
	Missing []string
}

func (e MalformedInputError) Error() string {
	return fmt.Sprintf("deployment table missing required columns: %s", strings.Join(e.Missing, ", "))
}

// PersistenceError 包装后端存储的读写失败。
type PersistenceError struct {
	Op    string
	Key   string
	Cause error
}

func (e PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("persistence %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Key, e.Cause)
}

func (e PersistenceError) Unwrap() error { return e.Cause }
