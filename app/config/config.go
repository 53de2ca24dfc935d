package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Backend BackendConfig `mapstructure:"backend"`
	Poller  PollerConfig  `mapstructure:"poller"`
	Storage StorageConfig `mapstructure:"storage"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	Dir        string `mapstructure:"dir"`         // 日志目录
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

// BackendConfig 笔记生成后端
type BackendConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Timeout   int    `mapstructure:"timeout"` // 秒
	UserAgent string `mapstructure:"user_agent"`
}

// PollerConfig 状态轮询
type PollerConfig struct {
	Interval int `mapstructure:"interval"` // 秒
}

// StorageConfig 本地持久化
type StorageConfig struct {
	DBPath   string `mapstructure:"db_path"`
	StateKey string `mapstructure:"state_key"`
}

// ProxyConfig 图片代理
type ProxyConfig struct {
	Referer      string `mapstructure:"referer"`
	CacheMinutes int    `mapstructure:"cache_minutes"`
	Timeout      int    `mapstructure:"timeout"`    // 秒
	StaticDir    string `mapstructure:"static_dir"` // 后端静态资源目录，为空时不提供本地文件
}

// TimeoutDuration 后端请求超时
func (c BackendConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// IntervalDuration 轮询间隔
func (c PollerConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

func Load() *Config {
	SetDefaults()

	// 读取配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			log.Fatalf("读取配置文件出错: %v", err)
		}
	}

	config, err := Decode()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return config
}

// Decode 从 viper 当前状态解码并校验配置，配置热加载时也会调用
func Decode() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解码配置: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	config.Backend.BaseURL = strings.TrimRight(config.Backend.BaseURL, "/")
	return &config, nil
}

// SetDefaults 设置默认配置
func SetDefaults() {
	viper.SetDefault("server.port", "8080")

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.dir", "data/logs")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// 后端默认配置
	viper.SetDefault("backend.base_url", "http://127.0.0.1:8483/api")
	viper.SetDefault("backend.timeout", 30)
	viper.SetDefault("backend.user_agent", "note-tracker/1.0")

	viper.SetDefault("poller.interval", 3)

	viper.SetDefault("storage.db_path", "data/note-tracker.db")
	viper.SetDefault("storage.state_key", "task-storage")

	viper.SetDefault("proxy.referer", "https://www.bilibili.com/")
	viper.SetDefault("proxy.cache_minutes", 60)
	viper.SetDefault("proxy.timeout", 10)
	viper.SetDefault("proxy.static_dir", "static")
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.Backend.BaseURL == "" {
		return fmt.Errorf("后端地址未设置")
	}
	if config.Poller.Interval <= 0 {
		return fmt.Errorf("轮询间隔必须大于 0，当前为 %d", config.Poller.Interval)
	}
	if config.Storage.DBPath == "" || config.Storage.StateKey == "" {
		return fmt.Errorf("存储配置不完整")
	}
	return nil
}
