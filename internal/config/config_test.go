package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("duration accessors convert from seconds", func(t *testing.T) {
		cfg := &Config{
			NetworkWaitSeconds:   30,
			SMSRetryPauseSeconds: 2,
			KeepAliveSeconds:     10,
			UssdIdleSeconds:      120,
			OTPTTLSeconds:        300,
		}
		assert.Equal(t, 30*time.Second, cfg.NetworkWait())
		assert.Equal(t, 2*time.Second, cfg.SMSRetryPause())
		assert.Equal(t, 10*time.Second, cfg.KeepAliveInterval())
		assert.Equal(t, 120*time.Second, cfg.UssdIdleWindow())
		assert.Equal(t, 300*time.Second, cfg.OTPTTL())
	})

	t.Run("TokenValidity converts from hours", func(t *testing.T) {
		cfg := &Config{TokenValidityHours: 24}
		assert.Equal(t, 24*time.Hour, cfg.TokenValidity())
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":            os.Getenv("PORT"),
		"TOKEN_SECRET":    os.Getenv("TOKEN_SECRET"),
		"MODEM_DEVICE":    os.Getenv("MODEM_DEVICE"),
		"MODEM_BAUDRATE":  os.Getenv("MODEM_BAUDRATE"),
		"OTP_TTL_SECONDS": os.Getenv("OTP_TTL_SECONDS"),
		"LOG_LEVEL":       os.Getenv("LOG_LEVEL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("TOKEN_SECRET", "test-secret")
		os.Unsetenv("PORT")
		os.Unsetenv("MODEM_DEVICE")
		os.Unsetenv("MODEM_BAUDRATE")
		os.Unsetenv("OTP_TTL_SECONDS")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "/dev/ttyUSB2", cfg.ModemDevice)
		assert.Equal(t, 115200, cfg.ModemBaud)
		assert.Equal(t, "#357#", cfg.DefaultUssdCode)
		assert.Equal(t, 300, cfg.OTPTTLSeconds)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("fails without token secret", func(t *testing.T) {
		os.Unsetenv("TOKEN_SECRET")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("reads overrides from environment", func(t *testing.T) {
		os.Setenv("TOKEN_SECRET", "test-secret")
		os.Setenv("MODEM_DEVICE", "/dev/ttyACM0")
		os.Setenv("MODEM_BAUDRATE", "9600")
		os.Setenv("OTP_TTL_SECONDS", "120")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyACM0", cfg.ModemDevice)
		assert.Equal(t, 9600, cfg.ModemBaud)
		assert.Equal(t, 120*time.Second, cfg.OTPTTL())
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects weak token secret in production", func(t *testing.T) {
		cfg := &Config{TokenSecret: "secret", SMSRetryAttempts: 3}
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("accepts strong secret in production", func(t *testing.T) {
		cfg := &Config{
			TokenSecret:      "0123456789abcdef0123456789abcdef",
			SMSRetryAttempts: 3,
		}
		assert.NoError(t, cfg.Validate(true))
	})

	t.Run("rejects zero retry attempts", func(t *testing.T) {
		cfg := &Config{SMSRetryAttempts: 0}
		assert.Error(t, cfg.Validate(false))
	})
}
