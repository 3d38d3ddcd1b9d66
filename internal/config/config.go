package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	JWTSecret      string   `mapstructure:"JWT_SECRET"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	// Risk classification. When CLASSIFIER_URL is empty the built-in rule
	// classifier runs alone; otherwise the remote scorer is tried first with
	// the rule classifier as fallback.
	ClassifierURL       string `mapstructure:"CLASSIFIER_URL"`
	ClassifierTimeoutMS int    `mapstructure:"CLASSIFIER_TIMEOUT_MS"`

	// Clinician notification.
	SMTPHost string `mapstructure:"SMTP_HOST"`
	SMTPPort int    `mapstructure:"SMTP_PORT"`
	SMTPFrom string `mapstructure:"SMTP_FROM"`

	// Patient SMS. When SMS_GATEWAY_URL is empty outbound SMS is logged only.
	SMSGatewayURL string `mapstructure:"SMS_GATEWAY_URL"`
	SMSAPIKey     string `mapstructure:"SMS_API_KEY"`
	SMSSenderID   string `mapstructure:"SMS_SENDER_ID"`

	OTPTTLMinutes            int `mapstructure:"OTP_TTL_MINUTES"`
	AppointmentLookaheadDays int `mapstructure:"APPOINTMENT_LOOKAHEAD_DAYS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("CLASSIFIER_TIMEOUT_MS", 5000)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "alerts@carepulse.local")
	v.SetDefault("SMS_SENDER_ID", "CarePulse")
	v.SetDefault("OTP_TTL_MINUTES", 10)
	v.SetDefault("APPOINTMENT_LOOKAHEAD_DAYS", 3)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("CLASSIFIER_URL")
	v.BindEnv("CLASSIFIER_TIMEOUT_MS")
	v.BindEnv("SMTP_HOST")
	v.BindEnv("SMTP_PORT")
	v.BindEnv("SMTP_FROM")
	v.BindEnv("SMS_GATEWAY_URL")
	v.BindEnv("SMS_API_KEY")
	v.BindEnv("SMS_SENDER_ID")
	v.BindEnv("OTP_TTL_MINUTES")
	v.BindEnv("APPOINTMENT_LOOKAHEAD_DAYS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret is mandatory so that real authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV is %q", c.Env)
	}
	if c.OTPTTLMinutes <= 0 {
		return fmt.Errorf("OTP_TTL_MINUTES must be positive, got %d", c.OTPTTLMinutes)
	}
	if c.AppointmentLookaheadDays < 0 {
		return fmt.Errorf("APPOINTMENT_LOOKAHEAD_DAYS must not be negative, got %d", c.AppointmentLookaheadDays)
	}
	return nil
}
