package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SourceLive      = "live"
	SourceSynthetic = "synthetic"
)

type Config struct {
	Log      LogConfig
	HTTP     HTTPConfig
	Serial   SerialConfig
	Device   DeviceConfig
	Monitor  MonitorConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
}

type LogConfig struct {
	Level string
}

type HTTPConfig struct {
	BridgePort      int
	MonitorPort     int
	NotifierPort    int
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type SerialConfig struct {
	// Port skips auto-detection when set.
	Port           string
	BaudRate       int
	VendorHints    []string
	ReconnectDelay time.Duration
}

type DeviceConfig struct {
	// StaleAfter drops the latest payload when the device has been silent
	// this long. Zero keeps it forever.
	StaleAfter time.Duration
}

type MonitorConfig struct {
	Site            string
	Source          string
	SourceURL       string
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	MaxBackoff      time.Duration
	WindowCapacity  int
	SeedHistory     bool
	ThresholdsFile  string
}

type RedisConfig struct {
	// Addr is empty when the latest payload is kept in memory.
	Addr     string
	Password string
	DB       int
	KeyTTL   time.Duration
}

type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	TopicAlerts string
	GroupID     string
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		HTTP: HTTPConfig{
			BridgePort:      getEnvAsInt("BRIDGE_PORT", 4000),
			MonitorPort:     getEnvAsInt("MONITOR_PORT", 8090),
			NotifierPort:    getEnvAsInt("NOTIFIER_PORT", 8091),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Serial: SerialConfig{
			Port:           getEnv("SERIAL_PORT", ""),
			BaudRate:       getEnvAsInt("SERIAL_BAUD_RATE", 115200),
			VendorHints:    getEnvAsList("SERIAL_VENDOR_HINTS", "Silicon Labs,wch,Espressif"),
			ReconnectDelay: getEnvAsDuration("SERIAL_RECONNECT_DELAY", 5*time.Second),
		},
		Device: DeviceConfig{
			StaleAfter: getEnvAsDuration("DEVICE_STALE_AFTER", 0),
		},
		Monitor: MonitorConfig{
			Site:            getEnv("MONITOR_SITE", "default"),
			Source:          getEnv("MONITOR_SOURCE", SourceLive),
			SourceURL:       getEnv("MONITOR_SOURCE_URL", "http://localhost:4000/api/sensor-data"),
			RefreshInterval: getEnvAsDuration("MONITOR_REFRESH_INTERVAL", 8*time.Second),
			FetchTimeout:    getEnvAsDuration("MONITOR_FETCH_TIMEOUT", 5*time.Second),
			MaxBackoff:      getEnvAsDuration("MONITOR_MAX_BACKOFF", 0),
			WindowCapacity:  getEnvAsInt("MONITOR_WINDOW_CAPACITY", 8),
			SeedHistory:     getEnvAsBool("MONITOR_SEED_HISTORY", true),
			ThresholdsFile:  getEnv("MONITOR_THRESHOLDS_FILE", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			KeyTTL:   getEnvAsDuration("REDIS_KEY_TTL", 0),
		},
		Kafka: KafkaConfig{
			Enabled:     getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:     getEnvAsList("KAFKA_BROKERS", "localhost:9092"),
			TopicAlerts: getEnv("KAFKA_TOPIC_ALERTS", "landslide.alerts"),
			GroupID:     getEnv("KAFKA_GROUP_ID", "landslide-notifier"),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnvAsInt("DB_PORT", 5432),
			User:          getEnv("DB_USER", "landslide_user"),
			Password:      getEnv("DB_PASSWORD", "landslide_pass"),
			DBName:        getEnv("DB_NAME", "landslide_db"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "landslide-monitor@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the settings the services cannot run without
func (c *Config) Validate() error {
	switch c.Monitor.Source {
	case SourceLive, SourceSynthetic:
	default:
		return fmt.Errorf("MONITOR_SOURCE must be %q or %q, got %q", SourceLive, SourceSynthetic, c.Monitor.Source)
	}
	if c.Monitor.Source == SourceLive && c.Monitor.SourceURL == "" {
		return fmt.Errorf("MONITOR_SOURCE_URL is required for the live source")
	}
	if c.Monitor.RefreshInterval <= 0 {
		return fmt.Errorf("MONITOR_REFRESH_INTERVAL must be positive")
	}
	if c.Monitor.FetchTimeout <= 0 {
		return fmt.Errorf("MONITOR_FETCH_TIMEOUT must be positive")
	}
	if c.Monitor.WindowCapacity < 1 {
		return fmt.Errorf("MONITOR_WINDOW_CAPACITY must be at least 1")
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key, defaultValue string) []string {
	var list []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
