// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// configPathEnv はYAML設定ファイルのパスを指定する環境変数。
const configPathEnv = "LINKDIGEST_CONFIG"

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
// 読み込み順序: デフォルト値 → YAMLファイル（任意） → 環境変数。
type Config struct {
	// Database
	DatabaseURL string `yaml:"databaseUrl"`

	// Server
	ServerPort string `yaml:"serverPort"`

	// Feishu
	FeishuAppID             string `yaml:"feishuAppId"`
	FeishuAppSecret         string `yaml:"feishuAppSecret"`
	FeishuVerificationToken string `yaml:"feishuVerificationToken"`
	FeishuBaseURL           string `yaml:"feishuBaseUrl"`
	FeishuDefaultChatID     string `yaml:"feishuDefaultChatId"`

	// AI (OpenAI互換API)
	AIAPIKey     string  `yaml:"aiApiKey"`
	AIBaseURL    string  `yaml:"aiBaseUrl"`
	AIModel      string  `yaml:"aiModel"`
	AIRatePerMin float64 `yaml:"aiRatePerMin"`
	AIRateBurst  int     `yaml:"aiRateBurst"`

	// Alert
	AlertWebhookURL string `yaml:"alertWebhookUrl"`

	// Pipeline
	FetchTimeout      time.Duration `yaml:"fetchTimeout"`
	FetchMaxSize      int64         `yaml:"fetchMaxSize"`
	SummaryMaxRetries int           `yaml:"summaryMaxRetries"`
	DigestMaxRetries  int           `yaml:"digestMaxRetries"`

	// Tenant
	DefaultTenantID string   `yaml:"defaultTenantId"`
	AllowedChats    []string `yaml:"allowedChats"`

	// Features
	EnableMockData    bool   `yaml:"enableMockData"`
	EnableDailyDigest bool   `yaml:"enableDailyDigest"`
	DigestTime        string `yaml:"digestTime"`
}

// Load は設定を読み込む。
// LINKDIGEST_CONFIGが指すYAMLファイルがあれば先に適用し、環境変数で上書きする。
// 必須設定が未指定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	// Required fields
	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.FeishuAppID == "" {
		missing = append(missing, "FEISHU_APP_ID")
	}
	if cfg.FeishuAppSecret == "" {
		missing = append(missing, "FEISHU_APP_SECRET")
	}
	if cfg.FeishuVerificationToken == "" {
		missing = append(missing, "FEISHU_VERIFICATION_TOKEN")
	}
	// モックモードではAI APIを呼び出さないためキー不要
	if cfg.AIAPIKey == "" && !cfg.EnableMockData {
		missing = append(missing, "AI_API_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if err := validateDigestTime(cfg.DigestTime); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ServerPort:        "8080",
		FeishuBaseURL:     "https://open.feishu.cn/open-apis",
		AIBaseURL:         "https://api.siliconflow.cn/v1",
		AIModel:           "deepseek-ai/DeepSeek-R1",
		AIRatePerMin:      60,
		AIRateBurst:       10,
		FetchTimeout:      5 * time.Second,
		FetchMaxSize:      5242880,
		SummaryMaxRetries: 2,
		DigestMaxRetries:  2,
		DefaultTenantID:   "default",
		EnableDailyDigest: true,
		DigestTime:        "20:00",
	}
}

func (c *Config) applyEnvOverrides() {
	c.DatabaseURL = getEnvString("DATABASE_URL", c.DatabaseURL)
	c.ServerPort = getEnvString("SERVER_PORT", c.ServerPort)

	c.FeishuAppID = getEnvString("FEISHU_APP_ID", c.FeishuAppID)
	c.FeishuAppSecret = getEnvString("FEISHU_APP_SECRET", c.FeishuAppSecret)
	c.FeishuVerificationToken = getEnvString("FEISHU_VERIFICATION_TOKEN", c.FeishuVerificationToken)
	c.FeishuBaseURL = getEnvString("FEISHU_BASE_URL", c.FeishuBaseURL)
	c.FeishuDefaultChatID = getEnvString("FEISHU_DEFAULT_CHAT_ID", c.FeishuDefaultChatID)

	c.AIAPIKey = getEnvString("AI_API_KEY", c.AIAPIKey)
	c.AIBaseURL = getEnvString("AI_BASE_URL", c.AIBaseURL)
	c.AIModel = getEnvString("AI_MODEL", c.AIModel)

	c.AlertWebhookURL = getEnvString("ALERT_WEBHOOK_URL", c.AlertWebhookURL)

	c.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", c.FetchTimeout)
	c.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", c.FetchMaxSize)
	c.SummaryMaxRetries = getEnvInt("SUMMARY_MAX_RETRIES", c.SummaryMaxRetries)
	c.DigestMaxRetries = getEnvInt("DIGEST_MAX_RETRIES", c.DigestMaxRetries)

	c.DefaultTenantID = getEnvString("DEFAULT_TENANT_ID", c.DefaultTenantID)
	if v := os.Getenv("ALLOWED_CHATS"); v != "" {
		c.AllowedChats = splitAndTrim(v)
	}

	c.EnableMockData = getEnvBool("ENABLE_MOCK_DATA", c.EnableMockData)
	c.EnableDailyDigest = getEnvBool("ENABLE_DAILY_DIGEST", c.EnableDailyDigest)
	c.DigestTime = getEnvString("DIGEST_TIME", c.DigestTime)
}

// validateDigestTime はHH:MM形式の時刻文字列を検証する。
func validateDigestTime(v string) error {
	parts := strings.Split(v, ":")
	if len(parts) != 2 {
		return fmt.Errorf("invalid DIGEST_TIME %q: want HH:MM", v)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return fmt.Errorf("invalid DIGEST_TIME %q: bad hour", v)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid DIGEST_TIME %q: bad minute", v)
	}
	return nil
}

// DigestHourMinute はDigestTimeを時と分に分解して返す。
// Loadで検証済みであることを前提とする。
func (c *Config) DigestHourMinute() (hour, minute int) {
	parts := strings.Split(c.DigestTime, ":")
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	return hour, minute
}

func splitAndTrim(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
