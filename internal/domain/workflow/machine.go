package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a configured transition may fire.
type GuardFunc func(ctx context.Context) bool

type transition struct {
	toState State
	guard   GuardFunc
}

// StateConfig accumulates the transitions permitted from one state.
type StateConfig struct {
	fromState   State
	transitions map[Trigger][]transition
}

// Builder assembles a state machine configuration. Build snapshots the
// configuration so machines stay valid if the builder is reused.
type Builder struct {
	configs map[State]*StateConfig
}

// NewBuilder creates an empty state machine builder.
func NewBuilder() *Builder {
	return &Builder{configs: make(map[State]*StateConfig)}
}

// Configure returns the configuration for a state, creating it on
// first use. Panics on an unknown state: a bad machine definition is a
// programming error, not a runtime condition.
func (b *Builder) Configure(state State) *StateConfig {
	if !state.IsValid() {
		panic(fmt.Sprintf("workflow: invalid state %q", state))
	}
	cfg, ok := b.configs[state]
	if !ok {
		cfg = &StateConfig{
			fromState:   state,
			transitions: make(map[Trigger][]transition),
		}
		b.configs[state] = cfg
	}
	return cfg
}

// Permit allows a trigger to transition to the target state.
func (c *StateConfig) Permit(trigger Trigger, toState State) *StateConfig {
	return c.PermitIf(trigger, toState, nil)
}

// PermitIf allows the transition only when the guard passes.
func (c *StateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) *StateConfig {
	if !toState.IsValid() {
		panic(fmt.Sprintf("workflow: invalid target state %q", toState))
	}
	c.transitions[trigger] = append(c.transitions[trigger], transition{toState: toState, guard: guard})
	return c
}

// Build creates a machine starting at the given state.
func (b *Builder) Build(initial State) *Machine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("workflow: invalid initial state %q", initial))
	}
	configs := make(map[State]*StateConfig, len(b.configs))
	for state, cfg := range b.configs {
		copied := &StateConfig{
			fromState:   state,
			transitions: make(map[Trigger][]transition, len(cfg.transitions)),
		}
		for trigger, ts := range cfg.transitions {
			copied.transitions[trigger] = append([]transition(nil), ts...)
		}
		configs[state] = copied
	}
	return &Machine{current: initial, configs: configs}
}

// Machine tracks the current state of one item and validates
// transitions against the configured lifecycle.
type Machine struct {
	current State
	configs map[State]*StateConfig
}

// State returns the current state.
func (m *Machine) State() State {
	return m.current
}

// CanFire returns true if the trigger has at least one configured
// transition from the current state. Guards are not evaluated here.
func (m *Machine) CanFire(trigger Trigger) bool {
	cfg, ok := m.configs[m.current]
	if !ok {
		return false
	}
	return len(cfg.transitions[trigger]) > 0
}

// Fire executes the trigger, moving to the first target whose guard
// passes.
func (m *Machine) Fire(ctx context.Context, trigger Trigger) error {
	cfg, ok := m.configs[m.current]
	if !ok || len(cfg.transitions[trigger]) == 0 {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, m.current)
	}
	for _, t := range cfg.transitions[trigger] {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.toState
			return nil
		}
	}
	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns the triggers configured from the current
// state.
func (m *Machine) PermittedTriggers() []Trigger {
	cfg, ok := m.configs[m.current]
	if !ok {
		return nil
	}
	triggers := make([]Trigger, 0, len(cfg.transitions))
	for trigger := range cfg.transitions {
		triggers = append(triggers, trigger)
	}
	return triggers
}
