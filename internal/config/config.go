package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Assistant AssistantConfig
	Contact   ContactConfig
	Log       LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	assistant, err := loadAssistantConfig()
	if err != nil {
		return nil, err
	}

	contact, err := loadContactConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Assistant: assistant, Contact: contact, Log: logCfg}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

const (
	DefaultGeminiModel   = "gemini-2.5-flash-preview-05-20"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// AssistantConfig 描述聊天助手与 Gemini 相关配置。
type AssistantConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	MaxAttempts    int
	InitialBackoff time.Duration
	RequestTimeout time.Duration
	ThinkingDelay  time.Duration
	FollowUpDelay  time.Duration
	SessionTTL     time.Duration
}

// RemoteEnabled 表示是否提供了 Gemini 凭证。缺少凭证时只使用本地知识库。
func (c AssistantConfig) RemoteEnabled() bool {
	return c.APIKey != ""
}

func loadAssistantConfig() (AssistantConfig, error) {
	maxAttempts, err := parseIntEnv("GEMINI_MAX_ATTEMPTS", 3)
	if err != nil {
		return AssistantConfig{}, err
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoffMS, err := parseIntEnv("GEMINI_INITIAL_BACKOFF_MS", 1000)
	if err != nil {
		return AssistantConfig{}, err
	}

	timeoutSeconds, err := parseIntEnv("GEMINI_TIMEOUT_SECONDS", 30)
	if err != nil {
		return AssistantConfig{}, err
	}

	thinkingMS, err := parseIntEnv("ASSISTANT_THINKING_DELAY_MS", 300)
	if err != nil {
		return AssistantConfig{}, err
	}

	followUpMS, err := parseIntEnv("ASSISTANT_FOLLOW_UP_DELAY_MS", 1500)
	if err != nil {
		return AssistantConfig{}, err
	}

	ttlMinutes, err := parseIntEnv("ASSISTANT_SESSION_TTL_MINUTES", 30)
	if err != nil {
		return AssistantConfig{}, err
	}

	return AssistantConfig{
		APIKey:         strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:          getEnvOrDefault("GEMINI_MODEL", DefaultGeminiModel),
		BaseURL:        strings.TrimRight(getEnvOrDefault("GEMINI_BASE_URL", DefaultGeminiBaseURL), "/"),
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Duration(backoffMS) * time.Millisecond,
		RequestTimeout: time.Duration(timeoutSeconds) * time.Second,
		ThinkingDelay:  time.Duration(thinkingMS) * time.Millisecond,
		FollowUpDelay:  time.Duration(followUpMS) * time.Millisecond,
		SessionTTL:     time.Duration(ttlMinutes) * time.Minute,
	}, nil
}

// ContactConfig 描述联系表单后端配置。
type ContactConfig struct {
	BackendURL string
	Timeout    time.Duration
}

func loadContactConfig() (ContactConfig, error) {
	timeoutSeconds, err := parseIntEnv("CONTACT_TIMEOUT_SECONDS", 15)
	if err != nil {
		return ContactConfig{}, err
	}

	return ContactConfig{
		BackendURL: strings.TrimRight(strings.TrimSpace(os.Getenv("CONTACT_BACKEND_URL")), "/"),
		Timeout:    time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level       string
	Development bool
}

func loadLogConfig() (LogConfig, error) {
	dev, err := parseBoolEnv("LOG_DEVELOPMENT", false)
	if err != nil {
		return LogConfig{}, err
	}

	return LogConfig{
		Level:       strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Development: dev,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	if *val < 0 {
		return 0, fmt.Errorf("invalid %s value %d: must not be negative", key, *val)
	}
	return *val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
