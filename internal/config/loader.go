package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoadConfig 加载配置文件
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// 默认配置文件搜索路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.zencloud")
		v.AddConfigPath("/etc/zencloud")
	}

	// 支持环境变量
	v.SetEnvPrefix("ZENCLOUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果是找不到配置文件，则使用默认配置
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 替换环境变量
	expandEnvVars(&config)

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// Server 默认配置
	v.SetDefault("server.http.enabled", true)
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.debug", false)
	v.SetDefault("server.mcp.enabled", false)
	v.SetDefault("server.mcp.port", 8081)

	// Database 路径不设默认值:未配置时命令层退回
	// database.GetDB(),由环境变量或内置默认路径决定

	// Provider 默认配置
	v.SetDefault("provider.driver", "mock")

	// Sync 默认配置
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.interval", 5*time.Minute)

	// Events 默认配置
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.url", "nats://127.0.0.1:4222")
	v.SetDefault("events.subject_prefix", "zencloud")

	// Auth 默认配置
	v.SetDefault("auth.enabled", false)
}

// expandEnvVars 展开环境变量
func expandEnvVars(config *Config) {
	// 展开云厂商凭证中的环境变量
	config.Provider.Aliyun.AK = os.ExpandEnv(config.Provider.Aliyun.AK)
	config.Provider.Aliyun.SK = os.ExpandEnv(config.Provider.Aliyun.SK)
	config.Provider.Amazon.AK = os.ExpandEnv(config.Provider.Amazon.AK)
	config.Provider.Amazon.SK = os.ExpandEnv(config.Provider.Amazon.SK)

	// 展开事件服务地址中的环境变量
	config.Events.URL = os.ExpandEnv(config.Events.URL)

	// 展开 Auth 配置中的环境变量
	for i, token := range config.Auth.Tokens {
		config.Auth.Tokens[i] = os.ExpandEnv(token)
	}
}
