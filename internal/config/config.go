package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Tally      TallyConfig      `mapstructure:"tally"`
	Matcher    MatcherConfig    `mapstructure:"matcher"`
	Accounting AccountingConfig `mapstructure:"accounting"`
	Voucher    VoucherConfig    `mapstructure:"voucher"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float32       `mapstructure:"temperature"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// TallyConfig holds the Tally gateway connection configuration
type TallyConfig struct {
	URL     string        `mapstructure:"url"`
	Company string        `mapstructure:"company"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MatcherConfig holds semantic matcher configuration
type MatcherConfig struct {
	MinSimilarity float64 `mapstructure:"min_similarity"`
}

// AccountingConfig holds the arithmetic tolerance shared by the
// verifier and the voucher balance guard.
type AccountingConfig struct {
	Epsilon     float64 `mapstructure:"epsilon"`
	RoundDigits int     `mapstructure:"round_digits"`
}

// VoucherConfig holds default-ledger and tax-split policy
type VoucherConfig struct {
	SalesLedger    string   `mapstructure:"sales_ledger"`
	SalesGroup     string   `mapstructure:"sales_group"`
	PurchaseLedger string   `mapstructure:"purchase_ledger"`
	PurchaseGroup  string   `mapstructure:"purchase_group"`
	TaxLedgers     []string `mapstructure:"tax_ledgers"`
	TaxGroup       string   `mapstructure:"tax_group"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 7860)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "60s")

	viper.SetDefault("database.path", "data/invoices.db")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "1h")

	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("openai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("openai.temperature", 0.3)
	viper.SetDefault("openai.timeout", "120s")

	viper.SetDefault("tally.url", "http://localhost:9000")
	viper.SetDefault("tally.timeout", "30s")

	viper.SetDefault("matcher.min_similarity", 0.9)

	viper.SetDefault("accounting.epsilon", 1.0)
	viper.SetDefault("accounting.round_digits", 1)

	viper.SetDefault("voucher.sales_ledger", "TallAi - Sales Account")
	viper.SetDefault("voucher.sales_group", "Sales Accounts")
	viper.SetDefault("voucher.purchase_ledger", "TallAi - Purchase Account")
	viper.SetDefault("voucher.purchase_group", "Purchase Accounts")
	viper.SetDefault("voucher.tax_ledgers", []string{"IGST"})
	viper.SetDefault("voucher.tax_group", "Duties & Taxes")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "console")
}

func bindEnvVars() {
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("tally.url", "TALLY_URL")
	_ = viper.BindEnv("database.path", "DATABASE_PATH")
	_ = viper.BindEnv("logger.level", "LOG_LEVEL")
}

// Validate checks configuration for consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}

	if c.Tally.URL == "" {
		return fmt.Errorf("tally.url is required")
	}

	if c.Matcher.MinSimilarity < 0 || c.Matcher.MinSimilarity > 1 {
		return fmt.Errorf("matcher.min_similarity must be between 0.0 and 1.0, got %.2f", c.Matcher.MinSimilarity)
	}

	if c.Accounting.Epsilon < 0 {
		return fmt.Errorf("accounting.epsilon must not be negative, got %.2f", c.Accounting.Epsilon)
	}

	if c.Accounting.RoundDigits < 0 || c.Accounting.RoundDigits > 6 {
		return fmt.Errorf("accounting.round_digits must be between 0 and 6, got %d", c.Accounting.RoundDigits)
	}

	if len(c.Voucher.TaxLedgers) == 0 {
		return fmt.Errorf("voucher.tax_ledgers must list at least one ledger")
	}

	return nil
}
