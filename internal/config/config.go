package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultEventBufferSize   = 2048
	defaultMetricChannelSize = 2048
	defaultSystemID          = "IntegrationOS-Internal-System"
	localSecretsKey          = "gateway-local-dev"
)

type Config struct {
	Environment   string
	LogLevel      string
	Server        ServerConfig
	Database      DatabaseConfig
	Cache         CacheConfig
	Pipeline      PipelineConfig
	Analytics     AnalyticsConfig
	Secrets       SecretsConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Address           string
	HTTPClientTimeout time.Duration
}

type DatabaseConfig struct {
	URL       string
	Name      string
	LogTiming bool
}

type CacheConfig struct {
	Size         int
	AccessKeyTTL time.Duration
}

// PipelineConfig sizes the event and metric pipelines.
// EventBufferSize is the batch size B, EventChannelSize the channel capacity C.
type PipelineConfig struct {
	EventBufferSize   int
	EventChannelSize  int
	EventTimeout      time.Duration
	MetricChannelSize int
	MetricSystemID    string
}

type AnalyticsConfig struct {
	WriteKey string
	Endpoint string
}

type SecretsConfig struct {
	EncryptionKey string
}

type RateLimitConfig struct {
	RedisURL  string
	PerMinute int
}

type ObservabilityConfig struct {
	Enabled          bool
	OTLPEndpoint     string
	OTLPTraceHeaders map[string]string
	ServiceName      string
	ServiceVer       string
	SamplingRatio    float64
}

func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("internal_server_address", "0.0.0.0:3005")
	v.SetDefault("control_database_url", "mongodb://localhost:27017")
	v.SetDefault("control_database_name", "control")
	v.SetDefault("database_log_timing", false)
	v.SetDefault("cache_size", 100)
	v.SetDefault("access_key_cache_ttl_secs", 1800)
	v.SetDefault("http_client_timeout_secs", 30)
	v.SetDefault("event_save_buffer_size", defaultEventBufferSize)
	v.SetDefault("event_save_channel_size", 0)
	v.SetDefault("event_save_timeout_secs", 30)
	v.SetDefault("metric_save_channel_size", defaultMetricChannelSize)
	v.SetDefault("metric_system_id", defaultSystemID)
	v.SetDefault("segment_write_key", "")
	v.SetDefault("segment_endpoint", "https://api.segment.io")
	v.SetDefault("secrets_encryption_key", "")
	v.SetDefault("rate_limit_redis_url", "")
	v.SetDefault("rate_limit_per_minute", 600)
	v.SetDefault("gateway_otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("otel_exporter_otlp_headers", "")
	v.SetDefault("otel_exporter_otlp_traces_headers", "")
	v.SetDefault("otel_service_name", "gateway")
	v.SetDefault("gateway_version", "dev")
	v.SetDefault("gateway_otel_sampling_ratio", 1.0)

	env := strings.ToLower(strings.TrimSpace(v.GetString("app_env")))

	address := strings.TrimSpace(v.GetString("internal_server_address"))
	if address == "" {
		address = "0.0.0.0:3005"
	}

	databaseURL := strings.TrimSpace(v.GetString("control_database_url"))
	parsed, err := url.Parse(databaseURL)
	if err != nil || parsed.Scheme == "" {
		return Config{}, fmt.Errorf("invalid CONTROL_DATABASE_URL: %q", databaseURL)
	}

	cacheSize := v.GetInt("cache_size")
	if cacheSize <= 0 {
		return Config{}, fmt.Errorf("invalid CACHE_SIZE: %d", cacheSize)
	}

	bufferSize := v.GetInt("event_save_buffer_size")
	if bufferSize <= 0 {
		bufferSize = defaultEventBufferSize
	}
	channelSize := v.GetInt("event_save_channel_size")
	if channelSize <= 0 {
		channelSize = bufferSize
	}
	timeoutSecs := v.GetInt("event_save_timeout_secs")
	if timeoutSecs <= 0 {
		timeoutSecs = 30
	}
	metricChannel := v.GetInt("metric_save_channel_size")
	if metricChannel <= 0 {
		metricChannel = defaultMetricChannelSize
	}
	systemID := strings.TrimSpace(v.GetString("metric_system_id"))
	if systemID == "" {
		systemID = defaultSystemID
	}

	clientTimeout := v.GetInt("http_client_timeout_secs")
	if clientTimeout <= 0 {
		clientTimeout = 30
	}
	accessTTL := v.GetInt("access_key_cache_ttl_secs")
	if accessTTL < 0 {
		accessTTL = 0
	}

	perMinute := v.GetInt("rate_limit_per_minute")
	if perMinute <= 0 {
		perMinute = 600
	}

	samplingRatio := v.GetFloat64("gateway_otel_sampling_ratio")
	if samplingRatio < 0 {
		samplingRatio = 0
	}
	if samplingRatio > 1 {
		samplingRatio = 1
	}
	serviceName := strings.TrimSpace(v.GetString("otel_service_name"))
	if serviceName == "" {
		serviceName = "gateway"
	}
	serviceVersion := strings.TrimSpace(v.GetString("gateway_version"))
	if serviceVersion == "" {
		serviceVersion = "dev"
	}
	otlpEndpoint := strings.TrimSpace(v.GetString("otel_exporter_otlp_endpoint"))
	traceHeaders := mergeHeaderMaps(
		parseOTLPHeaders(v.GetString("otel_exporter_otlp_headers")),
		parseOTLPHeaders(v.GetString("otel_exporter_otlp_traces_headers")),
	)

	cfg := Config{
		Environment: env,
		LogLevel:    strings.TrimSpace(v.GetString("log_level")),
		Server: ServerConfig{
			Address:           address,
			HTTPClientTimeout: time.Duration(clientTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			URL:       databaseURL,
			Name:      strings.TrimSpace(v.GetString("control_database_name")),
			LogTiming: v.GetBool("database_log_timing"),
		},
		Cache: CacheConfig{
			Size:         cacheSize,
			AccessKeyTTL: time.Duration(accessTTL) * time.Second,
		},
		Pipeline: PipelineConfig{
			EventBufferSize:   bufferSize,
			EventChannelSize:  channelSize,
			EventTimeout:      time.Duration(timeoutSecs) * time.Second,
			MetricChannelSize: metricChannel,
			MetricSystemID:    systemID,
		},
		Analytics: AnalyticsConfig{
			WriteKey: strings.TrimSpace(v.GetString("segment_write_key")),
			Endpoint: strings.TrimRight(strings.TrimSpace(v.GetString("segment_endpoint")), "/"),
		},
		Secrets: SecretsConfig{
			EncryptionKey: strings.TrimSpace(v.GetString("secrets_encryption_key")),
		},
		RateLimit: RateLimitConfig{
			RedisURL:  strings.TrimSpace(v.GetString("rate_limit_redis_url")),
			PerMinute: perMinute,
		},
		Observability: ObservabilityConfig{
			Enabled:          v.GetBool("gateway_otel_enabled") || otlpEndpoint != "",
			OTLPEndpoint:     otlpEndpoint,
			OTLPTraceHeaders: traceHeaders,
			ServiceName:      serviceName,
			ServiceVer:       serviceVersion,
			SamplingRatio:    samplingRatio,
		},
	}

	if cfg.Database.Name == "" {
		cfg.Database.Name = "control"
	}
	if !cfg.IsLocalDevelopment() && cfg.Secrets.EncryptionKey == "" {
		return Config{}, fmt.Errorf("SECRETS_ENCRYPTION_KEY is required outside local/dev environments")
	}
	if cfg.IsLocalDevelopment() && cfg.Secrets.EncryptionKey == "" {
		cfg.Secrets.EncryptionKey = localSecretsKey
	}

	return cfg, nil
}

func parseOTLPHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pair := strings.SplitN(part, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key := strings.TrimSpace(pair[0])
		value := strings.TrimSpace(pair[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeHeaderMaps(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func (c Config) IsLocalDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

// AnalyticsEnabled reports whether metrics are forwarded to the external analytics sink.
func (c Config) AnalyticsEnabled() bool {
	return c.Analytics.WriteKey != ""
}
