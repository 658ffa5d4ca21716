package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          int    `yaml:"port"`
	DBPath        string `yaml:"dbPath"`
	DBMaxConns    int    `yaml:"dbMaxConns"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	LogLevel      string `yaml:"logLevel"`
	LogFormat     string `yaml:"logFormat"`
	Env           string `yaml:"env"`
	CORSOrigin    string `yaml:"corsOrigin"`

	QueueRequestsPerMinute  int `yaml:"queueRequestsPerMinute"`
	QueueBurstSize          int `yaml:"queueBurstSize"`
	SubmitRequestsPerMinute int `yaml:"submitRequestsPerMinute"`
	SubmitBurstSize         int `yaml:"submitBurstSize"`

	TracingEnabled     bool    `yaml:"tracingEnabled"`
	TracingEndpoint    string  `yaml:"tracingEndpoint"`
	TracingInsecure    bool    `yaml:"tracingInsecure"`
	TracingSampleRatio float64 `yaml:"tracingSampleRatio"`

	PGXNAPIBaseURL         string `yaml:"pgxnApiBaseUrl"`
	SyncMaxAttempts        int    `yaml:"syncMaxAttempts"`
	SyncBaseBackoffSeconds int    `yaml:"syncBaseBackoffSeconds"`
	SyncMaxBackoffSeconds  int    `yaml:"syncMaxBackoffSeconds"`
}

// LoadConfigOptional behaves like LoadConfig but tolerates a missing or
// empty path: defaults and env overrides still apply.
func LoadConfigOptional(filePath string) (*Config, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return load(nil)
	}
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return load(nil)
	}
	if err != nil {
		return nil, err
	}
	return load(data)
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return load(data)
}

func load(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		c.CORSOrigin = v
	}
	if v := os.Getenv("QUEUE_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QueueRequestsPerMinute = n
		}
	}
	if v := os.Getenv("QUEUE_BURST_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QueueBurstSize = n
		}
	}
	if v := os.Getenv("SUBMIT_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SubmitRequestsPerMinute = n
		}
	}
	if v := os.Getenv("SUBMIT_BURST_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SubmitBurstSize = n
		}
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		c.TracingEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("TRACING_ENDPOINT"); v != "" {
		c.TracingEndpoint = v
	}
	if v := os.Getenv("PGXN_API_BASE_URL"); v != "" {
		c.PGXNAPIBaseURL = v
	}
	if v := os.Getenv("SYNC_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SyncMaxAttempts = n
		}
	}

	if c.Port == 0 {
		c.Port = 8080
	}
	if c.DBPath == "" {
		c.DBPath = "pgxn-tester.db"
	}
	if c.DBMaxConns <= 0 {
		c.DBMaxConns = 4
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.CORSOrigin == "" {
		c.CORSOrigin = "*"
	}
	if c.QueueRequestsPerMinute <= 0 {
		c.QueueRequestsPerMinute = 60
	}
	if c.QueueBurstSize <= 0 {
		c.QueueBurstSize = 10
	}
	if c.SubmitRequestsPerMinute <= 0 {
		c.SubmitRequestsPerMinute = 120
	}
	if c.SubmitBurstSize <= 0 {
		c.SubmitBurstSize = 20
	}
	if c.TracingSampleRatio <= 0 {
		c.TracingSampleRatio = 1.0
	}
	if c.PGXNAPIBaseURL == "" {
		c.PGXNAPIBaseURL = "https://api.pgxn.org"
	}
	if c.SyncMaxAttempts <= 0 {
		c.SyncMaxAttempts = 5
	}
	if c.SyncBaseBackoffSeconds <= 0 {
		c.SyncBaseBackoffSeconds = 2
	}
	if c.SyncMaxBackoffSeconds <= 0 {
		c.SyncMaxBackoffSeconds = 60
	}

	log.Printf("Server Config: {Port:%d DB:%s Redis:%s Env:%s}\n",
		c.Port, c.DBPath, c.RedisAddr, c.Env)
	return &c, nil
}

func (c *Config) Validate() error {
	var errs []string
	env := strings.ToLower(strings.TrimSpace(c.Env))
	dev := env == "dev"

	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, "dbPath is required")
	}
	if u, err := url.Parse(c.PGXNAPIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "pgxnApiBaseUrl must be a valid http(s) URL")
	}
	if c.TracingEnabled && strings.TrimSpace(c.TracingEndpoint) == "" && !dev {
		errs = append(errs, "tracingEndpoint is required when tracing is enabled in non-dev")
	}
	if c.RedisAddr == "" && !dev {
		errs = append(errs, "redisAddr is required in non-dev (rate limiting)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
