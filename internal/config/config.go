package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Specification struct {
	GeminiAPIKey string `yaml:"geminiApiKey" envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `yaml:"geminiModel" envconfig:"GEMINI_MODEL"`

	BlandAPIKey string `yaml:"blandApiKey" envconfig:"BLAND_API_KEY"`
	BlandAPIURL string `yaml:"blandApiUrl" envconfig:"BLAND_API_URL"`

	UploadDir       string `yaml:"uploadDir" split_words:"true"`
	TempDir         string `yaml:"tempDir" split_words:"true"`
	AudioDir        string `yaml:"audioDir" split_words:"true"`
	MaxUploadSizeMB int64  `yaml:"maxUploadSizeMB" envconfig:"MAX_UPLOAD_SIZE_MB"`

	AudioFormat  string `yaml:"audioFormat" split_words:"true"`
	AudioQuality string `yaml:"audioQuality" split_words:"true"`

	// Database is optional; when empty the in-memory store is used.
	Database string `yaml:"database" envconfig:"DB_URL"`

	LogLevel string `yaml:"logLevel" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`

	flags *pflag.FlagSet `ignored:"true"`
}

const envPrefix = "REPOVOICE"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/repovoice.yaml",
				"config/config.yaml",
				"./repovoice.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	// Minimal sanity
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MaxUploadSizeMB <= 0 {
		return Specification{}, fmt.Errorf("max upload size must be positive, got %d", cfg.MaxUploadSizeMB)
	}
	switch cfg.AudioFormat {
	case "mp3", "wav", "ogg":
	default:
		return Specification{}, fmt.Errorf("unsupported audio format: %s", cfg.AudioFormat)
	}
	return cfg, nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("gemini-api-key", c.GeminiAPIKey, "Google Gemini API key")
	fs.String("gemini-model", c.GeminiModel, "Gemini model name")

	fs.String("bland-api-key", c.BlandAPIKey, "Bland telephony API key")
	fs.String("bland-api-url", c.BlandAPIURL, "Bland telephony API base URL")

	fs.String("upload-dir", c.UploadDir, "Directory for ingested repositories")
	fs.String("temp-dir", c.TempDir, "Directory for uploaded archives in flight")
	fs.String("audio-dir", c.AudioDir, "Directory for generated audio files")
	fs.Int64("max-upload-size-mb", c.MaxUploadSizeMB, "Maximum archive upload size in MB")

	fs.String("audio-format", c.AudioFormat, "Default audio format (mp3|wav|ogg)")
	fs.String("audio-quality", c.AudioQuality, "Audio quality hint (low|medium|high)")

	fs.String("db-url", c.Database, "Optional database URL (DSN); empty uses in-memory store")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setInt64 := func(name string, dst *int64) {
		if fs.Changed(name) {
			v, _ := fs.GetInt64(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("gemini-api-key", &c.GeminiAPIKey)
	setStr("gemini-model", &c.GeminiModel)

	setStr("bland-api-key", &c.BlandAPIKey)
	setStr("bland-api-url", &c.BlandAPIURL)

	setStr("upload-dir", &c.UploadDir)
	setStr("temp-dir", &c.TempDir)
	setStr("audio-dir", &c.AudioDir)
	setInt64("max-upload-size-mb", &c.MaxUploadSizeMB)

	setStr("audio-format", &c.AudioFormat)
	setStr("audio-quality", &c.AudioQuality)

	setStr("db-url", &c.Database)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)
}

func setDefaults(c *Specification) {
	c.GeminiModel = "gemini-2.0-flash"
	c.BlandAPIURL = "https://api.bland.ai/v1"
	c.UploadDir = "./uploads"
	c.TempDir = "./temp"
	c.AudioDir = "./audio"
	c.MaxUploadSizeMB = 80
	c.AudioFormat = "mp3"
	c.AudioQuality = "medium"
	c.LogLevel = "info"
	c.Port = 8000
}

// MaxUploadBytes returns the configured upload cap in bytes.
func (s *Specification) MaxUploadBytes() int64 {
	return s.MaxUploadSizeMB << 20
}
