// Package container provides dependency injection and lifecycle management
// for the claim approval engine.
package container

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the Container.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Workflow routing and locking configuration
	Workflow WorkflowConfig

	// Risk annotation configuration
	Risk RiskConfig

	// Server configuration
	Server ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// WorkflowConfig holds routing thresholds and the processing lock TTL.
type WorkflowConfig struct {
	// HRThreshold is the amount above which HR review is required
	HRThreshold decimal.Decimal

	// AdminThreshold is the amount above which administrator review is required
	AdminThreshold decimal.Decimal

	// CriticalScore is the risk score at which administrator review is forced
	CriticalScore int

	// LockTTL bounds how long a single decision may hold a claim
	LockTTL time.Duration
}

// RiskConfig holds risk annotation settings.
type RiskConfig struct {
	// HighValueThreshold is the amount at which the high_value flag raises
	HighValueThreshold decimal.Decimal

	// SensitiveCategories always route through HR review
	SensitiveCategories []string

	// LateSubmissionDays is the age at which a claim counts as late
	LateSubmissionDays int

	// DuplicateLookback is the window scanned for near-identical claims
	DuplicateLookback time.Duration

	// FlagScoreThreshold is the score at which a claim is flagged
	FlagScoreThreshold int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if !c.Workflow.HRThreshold.IsPositive() {
		return fmt.Errorf("hr threshold must be positive")
	}
	if c.Workflow.AdminThreshold.LessThanOrEqual(c.Workflow.HRThreshold) {
		return fmt.Errorf("admin threshold must exceed hr threshold")
	}
	if c.Workflow.LockTTL <= 0 {
		return fmt.Errorf("lock ttl must be positive")
	}
	if !c.Risk.HighValueThreshold.IsPositive() {
		return fmt.Errorf("high value threshold must be positive")
	}
	if c.Risk.DuplicateLookback <= 0 {
		return fmt.Errorf("duplicate lookback must be positive")
	}
	return nil
}
