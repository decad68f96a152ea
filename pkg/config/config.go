package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Model struct {
		GatewayURL string        `yaml:"gateway_url"`
		APIKey     string        `yaml:"api_key"`
		Name       string        `yaml:"name"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"model"`
	Transcriber struct {
		URL     string        `yaml:"url"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"transcriber"`
	Media struct {
		MaxBytes     int `yaml:"max_bytes"`
		MaxImageEdge int `yaml:"max_image_edge"`
		JPEGQuality  int `yaml:"jpeg_quality"`
	} `yaml:"media"`
	Extraction struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"extraction"`
	Confirmation struct {
		AutoAcceptThreshold float64       `yaml:"auto_accept_threshold"`
		SessionTTL          time.Duration `yaml:"session_ttl"`
		SweepInterval       time.Duration `yaml:"sweep_interval"`
	} `yaml:"confirmation"`
	Quota struct {
		FreeMonthlyTradeCap int    `yaml:"free_monthly_trade_cap"`
		FreeHourlyAttempts  int    `yaml:"free_hourly_attempts"`
		UpgradeHint         string `yaml:"upgrade_hint"`
	} `yaml:"quota"`
	Entitlement struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"entitlement"`
	ChatGate struct {
		Enabled        bool          `yaml:"enabled"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Token          string        `yaml:"token"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"chatgate"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		InboundTopic string   `yaml:"inbound_topic"`
		EventsTopic  string   `yaml:"events_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Audit struct {
		BufferSize    int           `yaml:"buffer_size"`
		FlushInterval time.Duration `yaml:"flush_interval"`
	} `yaml:"audit"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("MODEL_GATEWAY_URL"); v != "" {
		c.Model.GatewayURL = v
	}
	if v := os.Getenv("MODEL_API_KEY"); v != "" {
		c.Model.APIKey = v
	}
	if v := os.Getenv("TRANSCRIBER_URL"); v != "" {
		c.Transcriber.URL = v
	}
	if v := os.Getenv("TRANSCRIBER_API_KEY"); v != "" {
		c.Transcriber.APIKey = v
	}
	if v := os.Getenv("CHATGATE_TOKEN"); v != "" {
		c.ChatGate.Token = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Model.Timeout <= 0 {
		c.Model.Timeout = 30 * time.Second
	}
	if c.Transcriber.Timeout <= 0 {
		c.Transcriber.Timeout = 30 * time.Second
	}
	if c.Media.MaxBytes <= 0 {
		c.Media.MaxBytes = 8 << 20
	}
	if c.Media.MaxImageEdge <= 0 {
		c.Media.MaxImageEdge = 1024
	}
	if c.Media.JPEGQuality <= 0 {
		c.Media.JPEGQuality = 85
	}
	if c.Extraction.CacheTTL <= 0 {
		c.Extraction.CacheTTL = 24 * time.Hour
	}
	if c.Confirmation.AutoAcceptThreshold <= 0 {
		c.Confirmation.AutoAcceptThreshold = 0.8
	}
	if c.Confirmation.SessionTTL <= 0 {
		c.Confirmation.SessionTTL = 15 * time.Minute
	}
	if c.Confirmation.SweepInterval <= 0 {
		c.Confirmation.SweepInterval = 30 * time.Second
	}
	if c.Quota.FreeMonthlyTradeCap <= 0 {
		c.Quota.FreeMonthlyTradeCap = 30
	}
	if c.Quota.FreeHourlyAttempts <= 0 {
		c.Quota.FreeHourlyAttempts = 10
	}
	if c.Quota.UpgradeHint == "" {
		c.Quota.UpgradeHint = "Upgrade to Pro for unlimited trades"
	}
	if c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = 1000
	}
	if c.Audit.FlushInterval <= 0 {
		c.Audit.FlushInterval = 5 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Model.GatewayURL == "" {
		return fmt.Errorf("model.gateway_url is required")
	}
	if c.Confirmation.AutoAcceptThreshold > 1 {
		return fmt.Errorf("confirmation.auto_accept_threshold must be in (0,1], got %v", c.Confirmation.AutoAcceptThreshold)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ChatGate.Enabled && c.ChatGate.WebSocketURL == "" {
		return fmt.Errorf("chatgate.websocket_url is required when chatgate is enabled")
	}
	return nil
}
