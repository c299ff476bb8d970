package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	OpenRouterAPIKey  string `mapstructure:"openrouter_api_key"`
	OpenRouterBaseURL string `mapstructure:"openrouter_base_url"`
	DefaultModel      string `mapstructure:"default_model"`
	SummaryModel      string `mapstructure:"summary_model"`

	DiscussionRounds int    `mapstructure:"discussion_rounds"`
	DefaultVerdict   string `mapstructure:"default_verdict"`
	AgentTimeoutSec  int    `mapstructure:"agent_timeout_sec"`
	GameTTLMin       int    `mapstructure:"game_ttl_min"`
}

var cfg *AppConfig

func GetConfig() *AppConfig {
	if cfg == nil {
		cfg = InitConfig()
	}

	return cfg
}

func InitConfig() *AppConfig {
	v := viper.New()

	v.SetConfigFile("app_config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	// API key 允许通过环境变量注入，避免写进配置文件
	v.BindEnv("openrouter_api_key", "OPENROUTER_API_KEY")

	v.SetDefault("openrouter_base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("discussion_rounds", 2)
	v.SetDefault("default_verdict", "GUILTY")
	v.SetDefault("agent_timeout_sec", 60)
	v.SetDefault("game_ttl_min", 60)

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("加载配置失败: %w", err))
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("解析配置失败: %w", err))
	}

	if config.SummaryModel == "" {
		config.SummaryModel = config.DefaultModel
	}

	return &config
}
