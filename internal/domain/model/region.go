package model

// RegionCode 是区域编码（例如 MX-CMX），必须出现在区域目录中。
type RegionCode string

// DefaultProgress 是未显式设置的区域的默认进度。
const DefaultProgress = 50

// CatalogBundle 是区域目录文件的顶层结构。
type CatalogBundle struct {
	Version     string        `yaml:"version"`
	BundleType  string        `yaml:"bundle_type"`
	Country     string        `yaml:"country"`
	Maintainer  string        `yaml:"maintainer"`
	Description string        `yaml:"description"`
	Regions     []RegionEntry `yaml:"regions"`
}

// RegionEntry 定义一个区域：编码 + 展示名。
type RegionEntry struct {
	Code        RegionCode `yaml:"code" json:"code"`
	DisplayName string     `yaml:"name" json:"name"`
}
