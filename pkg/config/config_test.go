package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/greentic/packoperator/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GREENTIC_ENV", "")
	t.Setenv("GREENTIC_OPERATOR_HOOKS_ENABLED", "")
	t.Setenv("GREENTIC_OPERATOR_ENABLE_EVENT_HOOKS", "")
	t.Setenv("GREENTIC_OPERATOR_TIMER_INTERVAL_SECONDS", "")

	cfg := config.Load()
	assert.Equal(t, "demo", cfg.Env)
	assert.True(t, cfg.HooksEnabled)
	assert.False(t, cfg.EnableEventHooks)
	assert.Equal(t, 60, cfg.TimerIntervalSeconds)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GREENTIC_ENV", "prod")
	t.Setenv("GREENTIC_OPERATOR_HOOKS_ENABLED", "false")
	t.Setenv("GREENTIC_OPERATOR_ENABLE_EVENT_HOOKS", "true")
	t.Setenv("GREENTIC_OPERATOR_TIMER_INTERVAL_SECONDS", "30")

	cfg := config.Load()
	assert.Equal(t, "prod", cfg.Env)
	assert.False(t, cfg.HooksEnabled)
	assert.True(t, cfg.EnableEventHooks)
	assert.Equal(t, 30, cfg.TimerIntervalSeconds)
}

// GREENTIC_OPERATOR_HOOKS_ENABLED disables hooks on "0|false|no|off".
func TestLoad_HooksDisabledSpellings(t *testing.T) {
	for _, v := range []string{"0", "false", "no", "off", "NO", "Off"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("GREENTIC_OPERATOR_HOOKS_ENABLED", v)
			assert.False(t, config.Load().HooksEnabled, "value %q should disable hooks", v)
		})
	}
}

// Any spelling other than the recognized disable set leaves hooks enabled
// (the default).
func TestLoad_HooksEnabledForUnrecognizedSpelling(t *testing.T) {
	t.Setenv("GREENTIC_OPERATOR_HOOKS_ENABLED", "nope")
	assert.True(t, config.Load().HooksEnabled)
}

// The event-hooks opt-in mirrors the disable set's shape but inverted:
// only "1|true|yes|on" turns it on.
func TestLoad_EventHooksEnabledSpellings(t *testing.T) {
	for _, v := range []string{"1", "true", "yes", "on", "YES", "On"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("GREENTIC_OPERATOR_ENABLE_EVENT_HOOKS", v)
			assert.True(t, config.Load().EnableEventHooks, "value %q should enable event hooks", v)
		})
	}
}

func TestLoad_EventHooksDisabledForUnrecognizedSpelling(t *testing.T) {
	t.Setenv("GREENTIC_OPERATOR_ENABLE_EVENT_HOOKS", "maybe")
	assert.False(t, config.Load().EnableEventHooks)
}
