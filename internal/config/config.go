package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "your-secret-key-please-change-this",
}

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Modem settings
	ModemDevice string `env:"MODEM_DEVICE" envDefault:"/dev/ttyUSB2"`
	ModemBaud   int    `env:"MODEM_BAUDRATE" envDefault:"115200"`
	ModemPIN    string `env:"MODEM_PIN"`

	// Network and send behaviour
	NetworkWaitSeconds   int `env:"NETWORK_WAIT_SECONDS" envDefault:"30"`
	SMSRetryAttempts     int `env:"SMS_RETRY_ATTEMPTS" envDefault:"3"`
	SMSRetryPauseSeconds int `env:"SMS_RETRY_PAUSE_SECONDS" envDefault:"2"`
	KeepAliveSeconds     int `env:"KEEPALIVE_SECONDS" envDefault:"10"`

	// USSD settings
	DefaultUssdCode string `env:"DEFAULT_USSD_CODE" envDefault:"#357#"`
	UssdIdleSeconds int    `env:"USSD_IDLE_SECONDS" envDefault:"120"`

	// Verification settings
	OTPTTLSeconds      int    `env:"OTP_TTL_SECONDS" envDefault:"300"`
	TokenSecret        string `env:"TOKEN_SECRET,required"`
	TokenValidityHours int    `env:"TOKEN_VALIDITY_HOURS" envDefault:"24"`

	// Optional collaborators
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) NetworkWait() time.Duration {
	return time.Duration(c.NetworkWaitSeconds) * time.Second
}

func (c *Config) SMSRetryPause() time.Duration {
	return time.Duration(c.SMSRetryPauseSeconds) * time.Second
}

func (c *Config) KeepAliveInterval() time.Duration {
	return time.Duration(c.KeepAliveSeconds) * time.Second
}

func (c *Config) UssdIdleWindow() time.Duration {
	return time.Duration(c.UssdIdleSeconds) * time.Second
}

func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLSeconds) * time.Second
}

func (c *Config) TokenValidity() time.Duration {
	return time.Duration(c.TokenValidityHours) * time.Hour
}

func (c *Config) Validate(isProduction bool) error {
	if c.SMSRetryAttempts < 1 {
		return fmt.Errorf("SMS_RETRY_ATTEMPTS must be at least 1")
	}

	if isProduction {
		if len(c.TokenSecret) < 32 {
			return fmt.Errorf("TOKEN_SECRET must be at least 32 characters in production (generate with: openssl rand -base64 32)")
		}
		for _, weak := range knownWeakSecrets {
			if c.TokenSecret == weak {
				return fmt.Errorf("TOKEN_SECRET is a known weak default; set a strong secret in production")
			}
		}
		if c.DatabaseURL == "" {
			log.Warn().Msg("DATABASE_URL is empty: parsed transactions will not be persisted")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
