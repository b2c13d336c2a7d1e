package config

import "time"

// Config 全局配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Provider ProviderConfig `mapstructure:"provider"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Events   EventsConfig   `mapstructure:"events"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	MCP  MCPConfig  `mapstructure:"mcp"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
	Debug   bool `mapstructure:"debug"`
}

// MCPConfig MCP 服务配置
type MCPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ProviderConfig 云厂商配置,driver 决定启用哪个网关实现
type ProviderConfig struct {
	Driver string       `mapstructure:"driver"` // mock, aliyun, amazon
	Aliyun AliyunConfig `mapstructure:"aliyun"`
	Amazon AmazonConfig `mapstructure:"amazon"`
}

// AliyunConfig 阿里云账号配置
type AliyunConfig struct {
	AK      string   `mapstructure:"ak"`
	SK      string   `mapstructure:"sk"`
	Regions []string `mapstructure:"regions"`
}

// AmazonConfig AWS 账号配置
type AmazonConfig struct {
	AK     string `mapstructure:"ak"`
	SK     string `mapstructure:"sk"`
	Region string `mapstructure:"region"`
}

// Settings 构造传给网关 Initialize 的配置集合
func (c *ProviderConfig) Settings() map[string]any {
	switch c.Driver {
	case "aliyun":
		regions := make([]any, 0, len(c.Aliyun.Regions))
		for _, r := range c.Aliyun.Regions {
			regions = append(regions, r)
		}
		return map[string]any{
			"access_key_id":     c.Aliyun.AK,
			"access_key_secret": c.Aliyun.SK,
			"regions":           regions,
		}
	case "amazon":
		return map[string]any{
			"access_key_id":     c.Amazon.AK,
			"secret_access_key": c.Amazon.SK,
			"region":            c.Amazon.Region,
		}
	default:
		return map[string]any{}
	}
}

// SyncConfig 全量同步配置
type SyncConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// EventsConfig 事件发布配置(NATS)
type EventsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// AuthConfig API 认证配置
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Tokens  []string `mapstructure:"tokens"`
}
