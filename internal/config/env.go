package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable read by the app.
const EnvPrefix = "SUBTITLE_STUDIO"

// Environment holds process-level settings that never reach the settings file.
type Environment struct {
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	LogLevel       string
	LogFormat      string
}

// LoadEnvironment reads an optional .env file, then the process environment.
// Variables already set in the process win over the file.
// API key and base URL fall back to the conventional OPENAI_* names.
func LoadEnvironment(envFile string) (Environment, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Environment{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("base_url", "https://api.openai.com/v1/")
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("request_timeout", "60s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	for key, fallback := range map[string]string{
		"api_key":  "OPENAI_API_KEY",
		"base_url": "OPENAI_BASE_URL",
	} {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), fallback); err != nil {
			return Environment{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	env := Environment{
		BaseURL:        strings.TrimSpace(v.GetString("base_url")),
		APIKey:         strings.TrimSpace(v.GetString("api_key")),
		Model:          strings.TrimSpace(v.GetString("model")),
		RequestTimeout: v.GetDuration("request_timeout"),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
	}
	if env.RequestTimeout <= 0 {
		return Environment{}, fmt.Errorf("invalid %s_REQUEST_TIMEOUT %q", EnvPrefix, v.GetString("request_timeout"))
	}
	return env, nil
}
