package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppName     string `mapstructure:"APP_NAME"`
	AppVersion  string `mapstructure:"APP_VERSION"`
	Environment string `mapstructure:"ENVIRONMENT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	Host string `mapstructure:"HOST"`
	Port string `mapstructure:"PORT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	AuthEnabled  bool   `mapstructure:"AUTH_ENABLED"`
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	JWTAlgorithm string `mapstructure:"JWT_ALGORITHM"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	JWKSURL      string `mapstructure:"JWKS_URL"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AIAPIKey         string  `mapstructure:"AI_API_KEY"`
	AIBaseURL        string  `mapstructure:"AI_BASE_URL"`
	AIModel          string  `mapstructure:"AI_MODEL"`
	AITemperature    float32 `mapstructure:"AI_TEMPERATURE"`
	AITimeoutSeconds int     `mapstructure:"AI_TIMEOUT_SECONDS"`
	AIMaxRetries     int     `mapstructure:"AI_MAX_RETRIES"`
	RateLimitAIRPM   float64 `mapstructure:"RATE_LIMIT_AI_RPM"`

	EmergencyWebhookURL          string `mapstructure:"EMERGENCY_WEBHOOK_URL"`
	EmergencyNotificationEnabled bool   `mapstructure:"EMERGENCY_NOTIFICATION_ENABLED"`

	SentryDSN string `mapstructure:"SENTRY_DSN"`
	BodyLimit string `mapstructure:"BODY_LIMIT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("APP_NAME", "MedTech AI Backend")
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "8000")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("AUTH_ENABLED", true)
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000,http://localhost:8000")
	v.SetDefault("AI_MODEL", "gemini-2.0-flash")
	v.SetDefault("AI_TEMPERATURE", 0.3)
	v.SetDefault("AI_TIMEOUT_SECONDS", 30)
	v.SetDefault("AI_MAX_RETRIES", 3)
	v.SetDefault("RATE_LIMIT_AI_RPM", 30)
	v.SetDefault("EMERGENCY_NOTIFICATION_ENABLED", true)
	v.SetDefault("BODY_LIMIT", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("APP_NAME")
	v.BindEnv("APP_VERSION")
	v.BindEnv("ENVIRONMENT")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("HOST")
	v.BindEnv("PORT")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ENABLED")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("JWT_ALGORITHM")
	v.BindEnv("JWT_ISSUER")
	v.BindEnv("JWT_AUDIENCE")
	v.BindEnv("JWKS_URL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AI_API_KEY")
	v.BindEnv("AI_BASE_URL")
	v.BindEnv("AI_MODEL")
	v.BindEnv("AI_TEMPERATURE")
	v.BindEnv("AI_TIMEOUT_SECONDS")
	v.BindEnv("AI_MAX_RETRIES")
	v.BindEnv("RATE_LIMIT_AI_RPM")
	v.BindEnv("EMERGENCY_WEBHOOK_URL")
	v.BindEnv("EMERGENCY_NOTIFICATION_ENABLED")
	v.BindEnv("SENTRY_DSN")
	v.BindEnv("BODY_LIMIT")

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

	if cfg.IsDev() && !cfg.AuthEnabled {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running with AUTH_ENABLED=false.")
		log.Println("WARNING: All requests are treated as an admin user.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return strings.ToLower(c.Environment) == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// AITimeout returns the per-call model timeout as a duration.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

// Validate checks that the configuration is safe to run. In production
// authentication must be enabled and a token verification source (an
// HS256 secret or a JWKS endpoint) must be configured.
func (c *Config) Validate() error {
	if c.JWTAlgorithm != "HS256" && c.JWTAlgorithm != "RS256" {
		return fmt.Errorf("JWT_ALGORITHM must be \"HS256\" or \"RS256\", got %q", c.JWTAlgorithm)
	}
	if c.IsProduction() {
		if !c.AuthEnabled {
			return fmt.Errorf("AUTH_ENABLED must be true in production")
		}
		if c.JWTSecret == "" && c.JWKSURL == "" && c.JWTIssuer == "" {
			return fmt.Errorf("production requires JWT_SECRET or JWKS_URL (or JWT_ISSUER for discovery). " +
				"Refusing to start without token verification configuration")
		}
	}
	if c.AITemperature < 0 || c.AITemperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be between 0 and 2, got %v", c.AITemperature)
	}
	if c.AIMaxRetries < 1 {
		return fmt.Errorf("AI_MAX_RETRIES must be at least 1, got %d", c.AIMaxRetries)
	}
	if c.RateLimitAIRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_AI_RPM must be positive, got %v", c.RateLimitAIRPM)
	}
	return nil
}
