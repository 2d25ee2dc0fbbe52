package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// 不安全的默认值列表 (生产环境不应使用)
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"internal-secret":                      true,
	"internal-service-secret":              true,
	"":                                     true,
}

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	JWT            JWTConfig
	Compute        ComputeConfig
	SMTP           SMTPConfig
	Monitor        MonitorConfig
	InternalSecret string
	AdminEmail     string
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Schema   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

// ComputeConfig configures the cloud provider API used to create, power off
// and destroy droplets.
type ComputeConfig struct {
	APIBaseURL    string
	Token         string
	DefaultRegion string
	Image         string
	Tag           string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// MonitorConfig holds the lifecycle windows and job intervals
type MonitorConfig struct {
	TrialWindow    time.Duration
	PaymentWindow  time.Duration
	GracePeriod    time.Duration
	LifecycleEvery time.Duration
	SSLCheckEvery  time.Duration
	SSHTimeout     time.Duration
	CommandTimeout time.Duration
	DNSTimeout     time.Duration
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8006"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "basement_user"),
			Password: getEnv("DB_PASSWORD", "basement_pass"),
			DBName:   getEnv("DB_NAME", "basement_db"),
			Schema:   getEnv("DB_SCHEMA", "panel"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		Compute: ComputeConfig{
			APIBaseURL:    getEnv("COMPUTE_API_URL", "https://api.digitalocean.com"),
			Token:         getEnv("COMPUTE_API_TOKEN", ""),
			DefaultRegion: getEnv("COMPUTE_DEFAULT_REGION", "tor1"),
			Image:         getEnv("COMPUTE_IMAGE", "ubuntu-22-04-x64"),
			Tag:           getEnv("COMPUTE_DROPLET_TAG", "basement-server"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
			From:     getEnv("SMTP_FROM", "noreply@cloudedbasement.ca"),
		},
		Monitor: MonitorConfig{
			TrialWindow:    time.Duration(getEnvInt("TRIAL_WINDOW_HOURS", 72)) * time.Hour,
			PaymentWindow:  time.Duration(getEnvInt("PAYMENT_WINDOW_DAYS", 35)) * 24 * time.Hour,
			GracePeriod:    time.Duration(getEnvInt("GRACE_PERIOD_DAYS", 7)) * 24 * time.Hour,
			LifecycleEvery: time.Duration(getEnvInt("LIFECYCLE_INTERVAL_MINUTES", 60)) * time.Minute,
			SSLCheckEvery:  time.Duration(getEnvInt("SSL_CHECK_INTERVAL_MINUTES", 5)) * time.Minute,
			SSHTimeout:     time.Duration(getEnvInt("SSH_TIMEOUT_SECONDS", 30)) * time.Second,
			CommandTimeout: time.Duration(getEnvInt("COMMAND_TIMEOUT_SECONDS", 120)) * time.Second,
			DNSTimeout:     time.Duration(getEnvInt("DNS_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		InternalSecret: getEnv("INTERNAL_SECRET", ""),
		AdminEmail:     getEnv("ADMIN_EMAIL", "admin@cloudedbasement.ca"),
	}

	// 日志脱敏: 不记录敏感配置
	log.Printf("[config] Control Panel loaded: port=%s db=%s/%s.%s compute=%s",
		cfg.Server.Port, cfg.Database.Host, cfg.Database.DBName, cfg.Database.Schema, cfg.Compute.APIBaseURL)

	return cfg
}

// Validate 验证配置有效性，生产环境必须设置安全的密钥
func (c *Config) Validate() error {
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if insecureDefaults[c.InternalSecret] {
		return fmt.Errorf("INTERNAL_SECRET must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.InternalSecret) < 32 {
		return fmt.Errorf("INTERNAL_SECRET must be at least 32 characters long")
	}

	if c.Compute.Token == "" {
		return fmt.Errorf("COMPUTE_API_TOKEN must be set")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
