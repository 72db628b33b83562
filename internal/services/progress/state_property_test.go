package progress

import (
	"testing"

	"progress-map/internal/domain/model"
	"progress-map/internal/services/regions"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestSetGet_PropertyBased 覆盖 [0,100] 全区间：Set 后 Get 必须读回同一值，越界值必须被拒绝。
func TestSetGet_PropertyBased(t *testing.T) {
	catalog := regions.Default()
	codes := catalog.AllCodes()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("set then get returns the value", prop.ForAll(
		func(idx int, v int) bool {
			s := New(catalog)
			code := codes[idx]
			if err := s.Set(code, v); err != nil {
				t.Logf("Set(%s,%d): %v", code, v, err)
				return false
			}
			got, err := s.Get(code)
			return err == nil && got == v
		},
		gen.IntRange(0, len(codes)-1),
		gen.IntRange(MinPercent, MaxPercent),
	))

	properties.Property("out of range values never change state", prop.ForAll(
		func(idx int, v int) bool {
			s := New(catalog)
			code := codes[idx]
			if v >= MinPercent && v <= MaxPercent {
				return true
			}
			if err := s.Set(code, v); err == nil {
				return false
			}
			got, _ := s.Get(code)
			return got == model.DefaultProgress
		},
		gen.IntRange(0, len(codes)-1),
		gen.IntRange(-1000, 1000),
	))

	properties.Property("replaceAll with a bad key keeps previous mapping", prop.ForAll(
		func(idx int, v int, prev int) bool {
			s := New(catalog)
			code := codes[idx]
			_ = s.Set(code, prev)
			err := s.ReplaceAll(map[model.RegionCode]int{code: v, "ZZ-BAD": v})
			if err == nil {
				return false
			}
			got, _ := s.Get(code)
			return got == prev
		},
		gen.IntRange(0, len(codes)-1),
		gen.IntRange(MinPercent, MaxPercent),
		gen.IntRange(MinPercent, MaxPercent),
	))

	properties.TestingRun(t)
}
