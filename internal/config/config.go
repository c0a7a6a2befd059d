package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/extract"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Import    ImportConfig    `yaml:"import" mapstructure:"import"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// OCRConfig configures the OCR collaborator and the guards around it.
type OCRConfig struct {
	Provider        string  `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath   string  `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey      string  `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel    string  `yaml:"mistral_model" mapstructure:"mistral_model"`
	MistralBaseURL  string  `yaml:"mistral_base_url" mapstructure:"mistral_base_url"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec      float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst           int     `yaml:"burst" mapstructure:"burst"`
	MaxAttempts     int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff  int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	FailureLimit    int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSec int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ExtractConfig configures field extraction.
type ExtractConfig struct {
	extract.Config `yaml:",inline" mapstructure:",squash"`
	DictionaryPath string `yaml:"dictionary_path" mapstructure:"dictionary_path"`
}

// ScoringConfig holds the point allotment of each record group. Tiered
// groups award only their highest satisfied tier.
type ScoringConfig struct {
	IdentityMatchedWeight    float64  `yaml:"identity_matched_weight" mapstructure:"identity_matched_weight"`
	IdentityIdentifierWeight float64  `yaml:"identity_identifier_weight" mapstructure:"identity_identifier_weight"`
	IdentityNameWeight       float64  `yaml:"identity_name_weight" mapstructure:"identity_name_weight"`
	PolicyNumberWeight       float64  `yaml:"policy_number_weight" mapstructure:"policy_number_weight"`
	DatePairWeight           float64  `yaml:"date_pair_weight" mapstructure:"date_pair_weight"`
	DateSingleWeight         float64  `yaml:"date_single_weight" mapstructure:"date_single_weight"`
	InsurerWeight            float64  `yaml:"insurer_weight" mapstructure:"insurer_weight"`
	BranchWeight             float64  `yaml:"branch_weight" mapstructure:"branch_weight"`
	TotalPremiumWeight       float64  `yaml:"total_premium_weight" mapstructure:"total_premium_weight"`
	NetPremiumWeight         float64  `yaml:"net_premium_weight" mapstructure:"net_premium_weight"`
	PlaceholderNames         []string `yaml:"placeholder_names" mapstructure:"placeholder_names"`
}

// ReconcileConfig configures entity resolution.
type ReconcileConfig struct {
	NameThreshold float64 `yaml:"name_threshold" mapstructure:"name_threshold"`
	MaxCandidates int     `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// ImportConfig configures batch processing and commit.
type ImportConfig struct {
	MaxConcurrentDocuments int `yaml:"max_concurrent_documents" mapstructure:"max_concurrent_documents"`
	MaxConcurrentCommits   int `yaml:"max_concurrent_commits" mapstructure:"max_concurrent_commits"`
	CommitTimeoutSecs      int `yaml:"commit_timeout_secs" mapstructure:"commit_timeout_secs"`
	LookupTimeoutSecs      int `yaml:"lookup_timeout_secs" mapstructure:"lookup_timeout_secs"`
	LookupAttempts         int `yaml:"lookup_attempts" mapstructure:"lookup_attempts"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("POLICYIMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "policies.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 64)
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("ocr.mistral_base_url", "https://api.mistral.ai/v1")
	v.SetDefault("ocr.timeout_secs", 120)
	v.SetDefault("ocr.rate_per_sec", 2.0)
	v.SetDefault("ocr.burst", 2)
	v.SetDefault("ocr.max_attempts", 3)
	v.SetDefault("ocr.initial_backoff_ms", 500)
	v.SetDefault("ocr.failure_threshold", 5)
	v.SetDefault("ocr.reset_timeout_secs", 30)

	ex := extract.DefaultConfig()
	v.SetDefault("extract.anchor.max_edits", ex.Anchor.MaxEdits)
	v.SetDefault("extract.anchor.max_edit_ratio", ex.Anchor.MaxEditRatio)
	v.SetDefault("extract.anchor.min_fuzzy_length", ex.Anchor.MinFuzzyLength)
	v.SetDefault("extract.anchor.confusion_classes", ex.Anchor.ConfusionClasses)
	v.SetDefault("extract.windows.identifier", ex.Windows.Identifier)
	v.SetDefault("extract.windows.date", ex.Windows.Date)
	v.SetDefault("extract.windows.period", ex.Windows.Period)
	v.SetDefault("extract.windows.amount", ex.Windows.Amount)
	v.SetDefault("extract.windows.text", ex.Windows.Text)
	v.SetDefault("extract.windows.object", ex.Windows.Object)
	v.SetDefault("extract.max_text_length", ex.MaxTextLength)

	v.SetDefault("scoring.identity_matched_weight", 30)
	v.SetDefault("scoring.identity_identifier_weight", 20)
	v.SetDefault("scoring.identity_name_weight", 10)
	v.SetDefault("scoring.policy_number_weight", 15)
	v.SetDefault("scoring.date_pair_weight", 20)
	v.SetDefault("scoring.date_single_weight", 10)
	v.SetDefault("scoring.insurer_weight", 15)
	v.SetDefault("scoring.branch_weight", 10)
	v.SetDefault("scoring.total_premium_weight", 10)
	v.SetDefault("scoring.net_premium_weight", 5)
	v.SetDefault("scoring.placeholder_names", []string{
		"nao informado", "nao consta", "segurado", "cliente", "nome", "n/a", "xxx",
	})

	v.SetDefault("reconcile.name_threshold", 0.85)
	v.SetDefault("reconcile.max_candidates", 10)

	v.SetDefault("import.max_concurrent_documents", 4)
	v.SetDefault("import.max_concurrent_commits", 4)
	v.SetDefault("import.commit_timeout_secs", 30)
	v.SetDefault("import.lookup_timeout_secs", 10)
	v.SetDefault("import.lookup_attempts", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "import", "serve":
		errs = append(errs, c.validatePipeline()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "migrate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validatePipeline() []string {
	var errs []string

	switch c.OCR.Provider {
	case "mistral":
		if c.OCR.MistralKey == "" {
			errs = append(errs, "ocr.mistral_api_key is required for the mistral provider")
		}
	case "local", "text":
	default:
		errs = append(errs, fmt.Sprintf("ocr.provider must be mistral, local or text, got %q", c.OCR.Provider))
	}

	if n := c.Import.MaxConcurrentDocuments; n < 1 || n > 64 {
		errs = append(errs, "import.max_concurrent_documents must be between 1 and 64")
	}
	if n := c.Import.MaxConcurrentCommits; n < 1 || n > 64 {
		errs = append(errs, "import.max_concurrent_commits must be between 1 and 64")
	}
	if t := c.Reconcile.NameThreshold; t <= 0 || t > 1 {
		errs = append(errs, "reconcile.name_threshold must be in (0, 1]")
	}
	if c.Extract.Anchor.MaxEdits < 0 || c.Extract.Anchor.MaxEditRatio < 0 {
		errs = append(errs, "extract.anchor tolerances must be >= 0")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
