package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// DefaultCacheDir 与历史缓存保持一致，位于当前工作目录下的隐藏目录。
	DefaultCacheDir = ".filecachedir"
	// DefaultSeedURL 是关系页，抓取流程的起点。
	DefaultSeedURL = "https://nergensbeterdanthuis.fandom.com/nl/wiki/Relaties"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// path 为空时只使用默认值，便于在没有配置文件的目录中直接运行。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyDiscoverDefaults(&cfg.Discover)
	cfg.Seeds = normalizeSeeds(cfg.Seeds)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCache, err := filepath.Abs(cfg.Global.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.CacheDir = absCache

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("CacheDir", DefaultCacheDir)
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("UserAgent", "thuis-scraper")
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("Seeds", []string{DefaultSeedURL})
	v.SetDefault("Discover.PathPrefix", "/nl/wiki/")
	v.SetDefault("Discover.MaxLinks", 500)
	v.SetDefault("Discover.IncludeNamespaced", false)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if strings.TrimSpace(g.CacheDir) == "" {
		g.CacheDir = DefaultCacheDir
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
}

func applyDiscoverDefaults(d *DiscoverConfig) {
	if d.PathPrefix != "" && !strings.HasPrefix(d.PathPrefix, "/") {
		d.PathPrefix = "/" + d.PathPrefix
	}
}

func normalizeSeeds(seeds []string) []string {
	result := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if trimmed := strings.TrimSpace(seed); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			var d Duration
			if err := d.UnmarshalText([]byte(v)); err == nil {
				return d, nil
			}
			if seconds, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
