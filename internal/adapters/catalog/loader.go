package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"progress-map/internal/domain/model"
	"progress-map/internal/platform/hash"

	"gopkg.in/yaml.v3"
)

//go:embed mx_states.yaml
var embeddedCatalog []byte

// EmbeddedSource 是内置目录在 LoadedCatalog.Source 中的标识。
const EmbeddedSource = "embedded:mx_states.yaml"

// Loader 负责从磁盘读取并校验区域目录文件；File 为空时使用内置目录。
type Loader struct {
	File string
}

// LoadedCatalog 是加载后的目录和文件哈希，用于留痕与版本确认。
type LoadedCatalog struct {
	Bundle model.CatalogBundle
	SHA256 string
	Source string
}

func NewLoader(file string) *Loader {
	return &Loader{File: file}
}

// Load 读取目录文件（或内置目录）并执行结构校验。
func (l *Loader) Load(ctx context.Context) (*LoadedCatalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := strings.TrimSpace(l.File)
	if path == "" {
		return Parse(embeddedCatalog, EmbeddedSource)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region catalog: %w", err)
	}
	return Parse(raw, path)
}

// Embedded 返回内置目录。内置文件随二进制发布，解析失败属于构建错误。
func Embedded() *LoadedCatalog {
	loaded, err := Parse(embeddedCatalog, EmbeddedSource)
	if err != nil {
		panic(fmt.Sprintf("embedded region catalog is invalid: %v", err))
	}
	return loaded
}

// Parse 解析 YAML 目录内容并校验。
func Parse(raw []byte, source string) (*LoadedCatalog, error) {
	var bundle model.CatalogBundle
	if err := yaml.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("parse region catalog: %w", err)
	}
	if err := validateCatalog(bundle); err != nil {
		return nil, err
	}

	return &LoadedCatalog{
		Bundle: bundle,
		SHA256: hash.Bytes(raw),
		Source: source,
	}, nil
}

// validateCatalog 检查目录的完整性与编码唯一性。
func validateCatalog(bundle model.CatalogBundle) error {
	if strings.TrimSpace(bundle.Version) == "" {
		return errors.New("region catalog: version is required")
	}
	if strings.TrimSpace(bundle.BundleType) == "" {
		return errors.New("region catalog: bundle_type is required")
	}
	if len(bundle.Regions) == 0 {
		return errors.New("region catalog: regions is empty")
	}

	seen := make(map[model.RegionCode]struct{}, len(bundle.Regions))
	for _, r := range bundle.Regions {
		code := model.RegionCode(strings.TrimSpace(string(r.Code)))
		if code == "" {
			return errors.New("region catalog: region code is required")
		}
		if code != r.Code {
			return fmt.Errorf("region catalog: region code has surrounding spaces: %q", r.Code)
		}
		if _, ok := seen[code]; ok {
			return fmt.Errorf("region catalog: duplicate region code: %s", code)
		}
		seen[code] = struct{}{}

		if strings.TrimSpace(r.DisplayName) == "" {
			return fmt.Errorf("region catalog: region name is required: %s", code)
		}
	}
	return nil
}
