package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/resume-guard/internal/masking"
)

const (
	app       = "resume-guard"
	envPrefix = "RESUME_GUARD"
)

type Config struct {
	Masking      *MaskingConfig      `mapstructure:"masking"`
	Server       *ServerConfig       `mapstructure:"server"`
	Review       *ReviewConfig       `mapstructure:"review"`
	Applications *ApplicationsConfig `mapstructure:"applications"`
}

type MaskingConfig struct {
	// Recognizer is one of lexicon, prose, both or none.
	Recognizer           string                `mapstructure:"recognizer"`
	DegradeOnEntityError bool                  `mapstructure:"degrade-on-entity-error"`
	Lexicon              masking.LexiconConfig `mapstructure:"lexicon"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	UploadDir      string        `mapstructure:"upload-dir"`
	MaxUploadBytes int64         `mapstructure:"max-upload-bytes"`
	ReviewTimeout  time.Duration `mapstructure:"review-timeout"`
	AllowedOrigins []string      `mapstructure:"allowed-origins"`
}

type ReviewConfig struct {
	Provider      string            `mapstructure:"provider"`
	RatePerMinute int               `mapstructure:"rate-per-minute"`
	MaxLogLength  int               `mapstructure:"max-log-length"`
	OpenRouter    *OpenRouterConfig `mapstructure:"openrouter"`
	Gemini        *GeminiConfig     `mapstructure:"gemini"`
}

type OpenRouterConfig struct {
	APIKey      string        `mapstructure:"api-key"`
	APIKeyFile  string        `mapstructure:"api-key-file"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base-url"`
	Referer     string        `mapstructure:"referer"`
	Title       string        `mapstructure:"title"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api-key"`
	APIKeyFile  string  `mapstructure:"api-key-file"`
	Model       string  `mapstructure:"model"`
	MaxRetries  int     `mapstructure:"max-retries"`
	Temperature float32 `mapstructure:"temperature"`
}

type ApplicationsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

var (
	// Used for flags.
	cfgFile string
	envFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-guard masks personal data in resumes before they are sent for AI review",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-guard.yaml in current directory)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "a dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("masking.recognizer", "lexicon")
	v.SetDefault("masking.degrade-on-entity-error", false)
	v.SetDefault("masking.lexicon.first-names", []string{})
	v.SetDefault("masking.lexicon.places", []string{})
	v.SetDefault("masking.lexicon.organizations", []string{})

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.upload-dir", "uploads")
	v.SetDefault("server.max-upload-bytes", 5<<20)
	v.SetDefault("server.review-timeout", 30*time.Second)
	v.SetDefault("server.allowed-origins", []string{"http://localhost:5173"})

	v.SetDefault("review.provider", "openrouter")
	v.SetDefault("review.rate-per-minute", 20)
	v.SetDefault("review.max-log-length", 200)
	v.SetDefault("review.openrouter.api-key", "")
	v.SetDefault("review.openrouter.api-key-file", "")
	v.SetDefault("review.openrouter.model", "")
	v.SetDefault("review.openrouter.base-url", "")
	v.SetDefault("review.openrouter.referer", "")
	v.SetDefault("review.openrouter.title", "")
	v.SetDefault("review.openrouter.temperature", 0.4)
	v.SetDefault("review.openrouter.timeout", 30*time.Second)
	v.SetDefault("review.gemini.api-key", "")
	v.SetDefault("review.gemini.api-key-file", "")
	v.SetDefault("review.gemini.model", "")
	v.SetDefault("review.gemini.max-retries", 3)
	v.SetDefault("review.gemini.temperature", 0.4)

	v.SetDefault("applications.enabled", true)
	v.SetDefault("applications.path", "data/applications.db")
}

func initConfig() {
	// A missing .env is normal; the environment may already be populated.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading %s: %v", envFile, err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit --config must exist; the default one is optional.
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
