package config

import (
	"github.com/shopspring/decimal"

	"github.com/expensehub/claimflow/internal/container"
)

// ToContainerConfig converts the file-based configuration loaded by viper
// into the container's configuration structure. Monetary thresholds move
// from float64 (what YAML carries) to decimal at this boundary.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Workflow: container.WorkflowConfig{
			HRThreshold:    decimal.NewFromFloat(c.Workflow.HRThreshold),
			AdminThreshold: decimal.NewFromFloat(c.Workflow.AdminThreshold),
			CriticalScore:  c.Workflow.CriticalScore,
			LockTTL:        c.Workflow.LockTTL,
		},
		Risk: container.RiskConfig{
			HighValueThreshold:  decimal.NewFromFloat(c.Risk.HighValueThreshold),
			SensitiveCategories: c.Risk.SensitiveCategories,
			LateSubmissionDays:  c.Risk.LateSubmissionDays,
			DuplicateLookback:   c.Risk.DuplicateLookback,
			FlagScoreThreshold:  c.Risk.FlagScoreThreshold,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
	}
}
