// Package regions 提供区域目录：编码 -> 展示名的静态映射，用于校验所有进入
// 进度状态与聚合流程的区域编码。构造后不可变。
package regions

import (
	"fmt"

	"progress-map/internal/adapters/catalog"
	"progress-map/internal/apperrors"
	"progress-map/internal/domain/model"
)

// Catalog 保存按定义顺序排列的区域及其索引。
type Catalog struct {
	entries []model.RegionEntry
	index   map[model.RegionCode]int
}

// New 按给定顺序构造目录；编码重复或为空时返回错误。
func New(entries []model.RegionEntry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]model.RegionEntry, 0, len(entries)),
		index:   make(map[model.RegionCode]int, len(entries)),
	}
	for _, e := range entries {
		if e.Code == "" {
			return nil, fmt.Errorf("region catalog: empty region code")
		}
		if _, dup := c.index[e.Code]; dup {
			return nil, fmt.Errorf("region catalog: duplicate region code: %s", e.Code)
		}
		c.index[e.Code] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// FromLoaded 用已校验的目录文件构造 Catalog。
func FromLoaded(loaded *catalog.LoadedCatalog) (*Catalog, error) {
	if loaded == nil {
		return nil, fmt.Errorf("region catalog: nil bundle")
	}
	return New(loaded.Bundle.Regions)
}

// Default 返回内置的 31 个州目录。
func Default() *Catalog {
	c, err := FromLoaded(catalog.Embedded())
	if err != nil {
		panic(err)
	}
	return c
}

// DisplayName 返回区域展示名；编码不存在时返回 UnknownRegionError。
func (c *Catalog) DisplayName(code model.RegionCode) (string, error) {
	i, ok := c.index[code]
	if !ok {
		return "", apperrors.UnknownRegionError{Code: string(code)}
	}
	return c.entries[i].DisplayName, nil
}

// AllCodes 返回目录定义顺序的全部编码（副本）。
func (c *Catalog) AllCodes() []model.RegionCode {
	out := make([]model.RegionCode, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Code
	}
	return out
}

// Entries 返回目录条目副本。
func (c *Catalog) Entries() []model.RegionEntry {
	out := make([]model.RegionEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) Contains(code model.RegionCode) bool {
	_, ok := c.index[code]
	return ok
}

func (c *Catalog) Validate(code model.RegionCode) error {
	if !c.Contains(code) {
		return apperrors.UnknownRegionError{Code: string(code)}
	}
	return nil
}

func (c *Catalog) Len() int { return len(c.entries) }
