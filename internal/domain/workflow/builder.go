package workflow

import (
	"fmt"

	"github.com/expensehub/claimflow/internal/domain/claim"
)

// StateMachineBuilder builds a configured state machine.
type StateMachineBuilder interface {
	// Configure returns a configuration for the given status.
	Configure(status claim.Status) StateConfiguration

	// Build creates a machine instance starting at the given status.
	Build(initial claim.Status) StateMachine
}

// StateConfiguration configures permitted transitions for one status.
type StateConfiguration interface {
	// Permit allows the trigger to transition to any of the target
	// statuses.
	Permit(trigger Trigger, targets ...claim.Status) StateConfiguration
}

type stateConfig struct {
	from        claim.Status
	transitions map[Trigger][]claim.Status
}

type stateMachineBuilder struct {
	configurations map[claim.Status]*stateConfig
}

type stateMachine struct {
	current        claim.Status
	configurations map[claim.Status]*stateConfig
}

// NewBuilder creates a new state machine builder.
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[claim.Status]*stateConfig),
	}
}

// Configure returns a configuration for the given status.
func (b *stateMachineBuilder) Configure(status claim.Status) StateConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &stateConfig{
			from:        status,
			transitions: make(map[Trigger][]claim.Status),
		}
		b.configurations[status] = config
	}

	return config
}

// Build creates a machine instance starting at the given status.
func (b *stateMachineBuilder) Build(initial claim.Status) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", initial))
	}

	// Copy configurations so later builder mutations cannot leak into a
	// built machine.
	configsCopy := make(map[claim.Status]*stateConfig, len(b.configurations))
	for status, config := range b.configurations {
		transitionsCopy := make(map[Trigger][]claim.Status, len(config.transitions))
		for trigger, targets := range config.transitions {
			transitionsCopy[trigger] = append([]claim.Status{}, targets...)
		}
		configsCopy[status] = &stateConfig{
			from:        status,
			transitions: transitionsCopy,
		}
	}

	return &stateMachine{
		current:        initial,
		configurations: configsCopy,
	}
}

// Permit allows the trigger to transition to any of the target statuses.
func (c *stateConfig) Permit(trigger Trigger, targets ...claim.Status) StateConfiguration {
	for _, target := range targets {
		if !target.IsValid() {
			panic(fmt.Sprintf("invalid target status: %s", target))
		}
	}
	c.transitions[trigger] = append(c.transitions[trigger], targets...)
	return c
}

// State returns the current status.
func (m *stateMachine) State() claim.Status {
	return m.current
}

// CanFire returns true if the trigger is permitted in the current status.
func (m *stateMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}
	return len(config.transitions[trigger]) > 0
}

// Fire transitions to the target status if the trigger permits it.
func (m *stateMachine) Fire(trigger Trigger, to claim.Status) error {
	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: trigger %s from terminal status %s", claim.ErrInvalidTransition, trigger, m.current)
	}

	targets, exists := config.transitions[trigger]
	if !exists || len(targets) == 0 {
		return fmt.Errorf("%w: trigger %s not permitted from status %s", claim.ErrInvalidTransition, trigger, m.current)
	}

	for _, target := range targets {
		if target == to {
			m.current = to
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from status %s cannot reach %s", claim.ErrInvalidTransition, trigger, m.current, to)
}

// PermittedTriggers returns all triggers that can fire from the current
// status.
func (m *stateMachine) PermittedTriggers() []Trigger {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		triggers = append(triggers, trigger)
	}
	return triggers
}
