package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/hire-intake/internal/prompts"
	"github.com/spigell/hire-intake/internal/server"
	"github.com/spigell/hire-intake/internal/store"
)

const (
	app       = "hire-intake"
	envPrefix = "HIRE_INTAKE"
)

type Config struct {
	Server  *server.Config `mapstructure:"server"`
	Store   *StoreConfig   `mapstructure:"store"`
	Prompts *PromptsConfig `mapstructure:"prompts"`
	AI      *AIConfig      `mapstructure:"ai"`
	Intake  *IntakeConfig  `mapstructure:"intake"`
}

type StoreConfig struct {
	Driver string            `mapstructure:"driver"`
	Redis  store.RedisConfig `mapstructure:"redis"`
}

type PromptsConfig struct {
	BaseURL        string   `mapstructure:"base-url"`
	Bucket         string   `mapstructure:"bucket"`
	ServiceKey     string   `mapstructure:"service-key"`
	ServiceKeyFile string   `mapstructure:"service-key-file"`
	Warm           []string `mapstructure:"warm"`

	prompts.Config `mapstructure:",squash"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Tone     string        `mapstructure:"tone"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type IntakeConfig struct {
	HistoryLimit int `mapstructure:"history-limit"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "hire-intake is a conversational hiring intake assistant",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hire-intake.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read-timeout", 10*time.Second)
	v.SetDefault("server.write-timeout", 30*time.Second)
	v.SetDefault("server.api-key", "")
	v.SetDefault("server.api-key-file", "")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.redis.address", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.ttl", time.Duration(0))
	v.SetDefault("store.redis.prefix", "hire-intake:")

	v.SetDefault("prompts.base-url", "")
	v.SetDefault("prompts.bucket", "prompts")
	v.SetDefault("prompts.service-key", "")
	v.SetDefault("prompts.service-key-file", "")
	v.SetDefault("prompts.ttl", time.Hour)
	v.SetDefault("prompts.stale-ttl", 6*time.Hour)
	v.SetDefault("prompts.timeout", 5*time.Second)
	v.SetDefault("prompts.size", 64)
	v.SetDefault("prompts.fallback", prompts.DefaultFallback)
	v.SetDefault("prompts.warm", []string{})

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.timeout", 3*time.Second)
	v.SetDefault("ai.tone", "")
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "")
	v.SetDefault("ai.gemini.max-log-length", 0)

	v.SetDefault("intake.history-limit", 8)
}

// configureEnv maps keys such as server.api-key to HIRE_INTAKE_SERVER_API_KEY.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	// A missing .env is normal outside of local development.
	_ = godotenv.Load()

	configureEnv(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults and environment are enough to run; only a broken file is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
