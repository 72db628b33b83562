package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 构建信息，通过 -ldflags "-X progress-map/internal/app.Version=..." 注入。
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// EnvPrefix 是环境变量覆盖的前缀。
const EnvPrefix = "PROGRESS_MAP_"

// Config 存放应用级配置。
type Config struct {
	DBPath         string        `yaml:"db_path"`
	CatalogPath    string        `yaml:"catalog_path"`
	DeploymentsCSV string        `yaml:"deployments_csv"`
	GeoJSONPath    string        `yaml:"geojson_path"`
	ListenAddr     string        `yaml:"listen_addr"`
	ReportUser     string        `yaml:"report_user"`
	ReportDir      string        `yaml:"report_dir"`
	LogLevel       string        `yaml:"log_level"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	Metrics        bool          `yaml:"metrics"`
}

// DefaultConfig 返回本地运行的默认配置。CatalogPath 为空表示使用内置目录。
func DefaultConfig() Config {
	return Config{
		DBPath:         "data/progress.db",
		DeploymentsCSV: "data/deployments.csv",
		GeoJSONPath:    "mexicoHigh.json",
		ListenAddr:     "127.0.0.1:8787",
		ReportUser:     "admin",
		ReportDir:      "data/reports",
		LogLevel:       "info",
		SessionTTL:     12 * time.Hour,
		Metrics:        true,
	}
}

// LoadConfig 依次应用默认值、可选 YAML 文件和环境变量。
// path 为空时跳过文件；命令行参数由调用方在之后覆盖。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv 用 PROGRESS_MAP_* 环境变量覆盖配置。
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DB_PATH":         &c.DBPath,
		"CATALOG_PATH":    &c.CatalogPath,
		"DEPLOYMENTS_CSV": &c.DeploymentsCSV,
		"GEOJSON_PATH":    &c.GeoJSONPath,
		"LISTEN_ADDR":     &c.ListenAddr,
		"REPORT_USER":     &c.ReportUser,
		"REPORT_DIR":      &c.ReportDir,
		"LOG_LEVEL":       &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup(EnvPrefix + "SESSION_TTL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %sSESSION_TTL: %w", EnvPrefix, err)
		}
		c.SessionTTL = d
	}
	if v, ok := lookup(EnvPrefix + "METRICS"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %sMETRICS: %w", EnvPrefix, err)
		}
		c.Metrics = b
	}
	return nil
}

// Validate 检查必填项。
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, errors.New("session_ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// VersionString 返回 "version (commit, built at)" 形式的构建信息。
func VersionString() string {
	s := Version
	var extra []string
	if Commit != "" {
		extra = append(extra, Commit)
	}
	if BuildTime != "" {
		extra = append(extra, "built "+BuildTime)
	}
	if len(extra) > 0 {
		s += " (" + strings.Join(extra, ", ") + ")"
	}
	return s
}
