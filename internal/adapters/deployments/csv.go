// Package deployments 读取原始部署表（CSV）。
//
// 只做文本层面的解析：表头 + 原始单元格，不校验区域编码，
// 也不判断必需列；这些由 aggregate 包在渲染时完成。
package deployments

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"progress-map/internal/domain/model"
	"progress-map/internal/platform/hash"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader 从磁盘加载部署表。
type Reader struct {
	File string
	// Comma 为空时使用逗号；Excel 导出的表常用分号。
	Comma rune
}

// LoadedTable 是解析后的部署表及原始文件哈希。
type LoadedTable struct {
	Table  model.DeploymentTable
	SHA256 string
	Source string
}

func NewReader(file string) *Reader {
	return &Reader{File: file}
}

// Load 读取并解析 CSV 文件。
func (r *Reader) Load(ctx context.Context) (*LoadedTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimSpace(r.File)
	if path == "" {
		return nil, errors.New("deployments csv path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deployments csv: %w", err)
	}
	table, err := Parse(bytes.NewReader(raw), r.Comma)
	if err != nil {
		return nil, err
	}
	return &LoadedTable{Table: *table, SHA256: hash.Bytes(raw), Source: path}, nil
}

// Parse 解析 CSV 流。第一行为表头；行宽允许不一致（短行交给聚合器丢弃并告警）。
func Parse(in io.Reader, comma rune) (*model.DeploymentTable, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("read deployments csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(raw))
	if comma != 0 {
		cr.Comma = comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("deployments csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("parse deployments csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := &model.DeploymentTable{Columns: header, Rows: [][]string{}}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse deployments csv: %w", err)
		}
		if blankRecord(rec) {
			continue
		}
		table.Rows = append(table.Rows, rec)
	}
	return table, nil
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
