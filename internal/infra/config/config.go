package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App          AppSettings          `mapstructure:"app"`
	Postgres     PostgresSettings     `mapstructure:"postgres"`
	Redis        RedisSettings        `mapstructure:"redis"`
	Kafka        KafkaSettings        `mapstructure:"kafka"`
	Admin        AdminSettings        `mapstructure:"admin"`
	Verification VerificationSettings `mapstructure:"verification"`
	AdminSession AdminSessionSettings `mapstructure:"admin_session"`
	SMTP         SMTPSettings         `mapstructure:"smtp"`
	RateLimit    RateLimitSettings    `mapstructure:"rate_limit"`
	Telemetry    TelemetrySettings    `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection and the key prefixes used by
// the verification and admin-session stores.
type RedisSettings struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	DB                 int    `mapstructure:"db"`
	Password           string `mapstructure:"password"`
	TLSEnabled         bool   `mapstructure:"tls_enabled"`
	VerificationPrefix string `mapstructure:"verification_prefix"`
	AdminSessionPrefix string `mapstructure:"admin_session_prefix"`
}

// KafkaSettings configures the security event producer. An empty broker list
// disables Kafka and falls back to the logging stub publisher.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// AdminSettings holds the operator-configured gate secrets. All four values
// are required in production deployments.
type AdminSettings struct {
	Identity     string `mapstructure:"identity"`
	Secret       string `mapstructure:"secret"`
	SecurityCode string `mapstructure:"security_code"`
	OTPSalt      string `mapstructure:"otp_salt"`
}

// VerificationSettings tunes the step state machine.
type VerificationSettings struct {
	StepTTL         time.Duration `mapstructure:"step_ttl"`
	CodeLength      int           `mapstructure:"code_length"`
	ResendCooldown  time.Duration `mapstructure:"resend_cooldown"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	// DevDeliveryLog routes one-time codes to the structured log instead of
	// SMTP. Wiring-time switch only; the core never falls back to it.
	DevDeliveryLog bool `mapstructure:"dev_delivery_log"`
}

// AdminSessionSettings configures the terminal authenticated-session marker.
type AdminSessionSettings struct {
	TTL        time.Duration `mapstructure:"ttl"`
	SigningKey string        `mapstructure:"signing_key"`
}

// SMTPSettings configures the out-of-band delivery channel.
type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// RateLimitSettings configures the sliding-window limiter on the login endpoint.
type RateLimitSettings struct {
	WindowDuration   time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts int           `mapstructure:"login_max_attempts"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("GATE")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.verification_prefix",
		"redis.admin_session_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"admin.identity",
		"admin.secret",
		"admin.security_code",
		"admin.otp_salt",
		"verification.step_ttl",
		"verification.code_length",
		"verification.resend_cooldown",
		"verification.delivery_timeout",
		"verification.dev_delivery_log",
		"admin_session.ttl",
		"admin_session.signing_key",
		"smtp.host",
		"smtp.port",
		"smtp.username",
		"smtp.password",
		"smtp.from",
		"smtp.to",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "admin-gate")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "gate")
	v.SetDefault("postgres.password", "gate_password")
	v.SetDefault("postgres.database", "gate")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.verification_prefix", "gate:verification")
	v.SetDefault("redis.admin_session_prefix", "gate:admin_session")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "gate")

	v.SetDefault("admin.identity", "")
	v.SetDefault("admin.secret", "")
	v.SetDefault("admin.security_code", "")
	v.SetDefault("admin.otp_salt", "")

	v.SetDefault("verification.step_ttl", "5m")
	v.SetDefault("verification.code_length", 6)
	v.SetDefault("verification.resend_cooldown", "60s")
	v.SetDefault("verification.delivery_timeout", "10s")
	v.SetDefault("verification.dev_delivery_log", false)

	v.SetDefault("admin_session.ttl", "24h")
	v.SetDefault("admin_session.signing_key", "")

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.to", "")

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 5)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "admin-gate")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "GATE_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
