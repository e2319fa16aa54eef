package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Logger   LoggerConfig   `mapstructure:"logger"`
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

// WorkflowConfig holds the routing thresholds and the processing lock TTL.
// Amounts are expressed in the claim currency's major unit.
type WorkflowConfig struct {
	HRThreshold    float64       `mapstructure:"hr_threshold"`
	AdminThreshold float64       `mapstructure:"admin_threshold"`
	CriticalScore  int           `mapstructure:"critical_score"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
}

// RiskConfig holds risk annotation configuration
type RiskConfig struct {
	HighValueThreshold  float64       `mapstructure:"high_value_threshold"`
	SensitiveCategories []string      `mapstructure:"sensitive_categories"`
	LateSubmissionDays  int           `mapstructure:"late_submission_days"`
	DuplicateLookback   time.Duration `mapstructure:"duplicate_lookback"`
	FlagScoreThreshold  int           `mapstructure:"flag_score_threshold"`
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

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/claimflow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Workflow defaults
	viper.SetDefault("workflow.hr_threshold", 5000.0)
	viper.SetDefault("workflow.admin_threshold", 15000.0)
	viper.SetDefault("workflow.critical_score", 70)
	viper.SetDefault("workflow.lock_ttl", 30*time.Second)

	// Risk defaults
	viper.SetDefault("risk.high_value_threshold", 10000.0)
	viper.SetDefault("risk.sensitive_categories", []string{"Entertainment", "Gifts"})
	viper.SetDefault("risk.late_submission_days", 30)
	viper.SetDefault("risk.duplicate_lookback", 30*24*time.Hour)
	viper.SetDefault("risk.flag_score_threshold", 70)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("server.port", "CLAIMFLOW_PORT")
	viper.BindEnv("database.path", "CLAIMFLOW_DB_PATH")
	viper.BindEnv("logger.level", "CLAIMFLOW_LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Workflow.HRThreshold <= 0 {
		return fmt.Errorf("workflow.hr_threshold must be positive")
	}
	if c.Workflow.AdminThreshold <= c.Workflow.HRThreshold {
		return fmt.Errorf("workflow.admin_threshold must exceed workflow.hr_threshold")
	}
	if c.Workflow.LockTTL <= 0 {
		return fmt.Errorf("workflow.lock_ttl must be positive")
	}

	if c.Risk.HighValueThreshold <= 0 {
		return fmt.Errorf("risk.high_value_threshold must be positive")
	}
	if c.Risk.FlagScoreThreshold <= 0 || c.Risk.FlagScoreThreshold > 100 {
		return fmt.Errorf("risk.flag_score_threshold must be between 1 and 100")
	}
	if c.Risk.DuplicateLookback <= 0 {
		return fmt.Errorf("risk.duplicate_lookback must be positive")
	}

	return nil
}
