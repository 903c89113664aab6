package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type StoreConfig struct {
	// memory 或 sqlite
	Driver string `mapstructure:"driver"`
	// sqlite 数据库文件路径，memory 驱动忽略
	Path string `mapstructure:"path"`
}

type WordsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	// 存放 API 密钥的环境变量名，密钥本体不进配置文件
	APIKeyEnv string `mapstructure:"api_key_env"`
}

type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	// 二维码里编码的对外加入地址，如 https://game.example.com
	PublicURL string `mapstructure:"public_url"`

	Store StoreConfig `mapstructure:"store"`
	Words WordsConfig `mapstructure:"words"`
}

// WordsAPIKey 从环境读取词语生成服务的密钥，未配置时为空
func (c *AppConfig) WordsAPIKey() string {
	if c.Words.APIKeyEnv == "" {
		return ""
	}

	return os.Getenv(c.Words.APIKeyEnv)
}

func InitConfig() *AppConfig {
	// .env 不存在不算错，生产环境直接注入环境变量
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigFile("app_config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("store.driver", "memory")

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("加载配置失败: %w", err))
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("解析配置失败: %w", err))
	}

	return &config
}
