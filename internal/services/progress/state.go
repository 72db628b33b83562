// Package progress 保存单个会话的区域进度（0~100 整数）。
//
// 状态只通过 Set 单条修改或 ReplaceAll 整体替换；两者都是原子的，
// 并发读写由内部锁保证不会看到半更新状态。未设置的区域返回默认值 50。
package progress

import (
	"sort"
	"sync"

	"progress-map/internal/apperrors"
	"progress-map/internal/domain/model"
)

const (
	MinPercent = 0
	MaxPercent = 100
)

// RegionValidator 用于校验区域编码，通常是 *regions.Catalog。
type RegionValidator interface {
	Validate(code model.RegionCode) error
}

// State 是单个会话的进度映射。
type State struct {
	mu      sync.RWMutex
	regions RegionValidator
	values  map[model.RegionCode]int
	dirty   bool
}

// New 创建空状态（所有区域取默认值）。
func New(regions RegionValidator) *State {
	return &State{
		regions: regions,
		values:  make(map[model.RegionCode]int),
	}
}

// Get 返回区域进度；未设置时返回 model.DefaultProgress。
func (s *State) Get(code model.RegionCode) (int, error) {
	if err := s.regions.Validate(code); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[code]; ok {
		return v, nil
	}
	return model.DefaultProgress, nil
}

// Set 替换单个区域的进度并标记为未保存。其他区域不受影响。
func (s *State) Set(code model.RegionCode, value int) error {
	if err := validateEntry(s.regions, code, value); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[code] = value
	s.dirty = true
	return nil
}

// ReplaceAll 用 mapping 整体替换当前状态（加载报告时使用）。
// 先完整校验，任何一条不合法都返回 InvalidReportDataError 且保留原状态。
// mapping 可以只包含部分区域，缺失的区域回落到默认值。
func (s *State) ReplaceAll(mapping map[model.RegionCode]int) error {
	if err := ValidateMapping(s.regions, mapping); err != nil {
		return apperrors.InvalidReportDataError{Cause: err}
	}

	next := make(map[model.RegionCode]int, len(mapping))
	for k, v := range mapping {
		next[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = next
	s.dirty = false
	return nil
}

// Snapshot 返回显式设置过的区域副本（不含默认值补全）。
func (s *State) Snapshot() map[model.RegionCode]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.RegionCode]int, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Dirty 表示自上次保存/加载后是否有修改，仅供 UI 提示使用。
func (s *State) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// MarkSaved 在报告保存成功后清除 dirty 标记。
func (s *State) MarkSaved() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

// ValidateMapping 校验整张映射，按编码排序后返回第一条违规，保证错误信息稳定。
func ValidateMapping(regions RegionValidator, mapping map[model.RegionCode]int) error {
	codes := make([]model.RegionCode, 0, len(mapping))
	for k := range mapping {
		codes = append(codes, k)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	for _, code := range codes {
		if err := validateEntry(regions, code, mapping[code]); err != nil {
			return err
		}
	}
	return nil
}

func validateEntry(regions RegionValidator, code model.RegionCode, value int) error {
	if err := regions.Validate(code); err != nil {
		return err
	}
	if value < MinPercent || value > MaxPercent {
		return apperrors.OutOfRangeError{Code: string(code), Value: value}
	}
	return nil
}
