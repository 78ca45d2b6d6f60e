package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("OFFINSTR_AGENT selects exec agent", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OFFINSTR_AGENT", "/usr/local/bin/transform")

		cfg := &Config{Agent: AgentConfig{Kind: "passthrough"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "exec", cfg.Agent.Kind)
		assert.Equal(t, "/usr/local/bin/transform", cfg.Agent.Command)
	})

	t.Run("paths and ABI", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OFFINSTR_STAGE_DIR", "/tmp/stage")
		t.Setenv("OFFINSTR_RESOURCE_DIR", "/opt/dist")
		t.Setenv("OFFINSTR_ABI", "x86_64")
		t.Setenv("OFFINSTR_R8_JAR", "/opt/r8.jar")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/stage", cfg.Stage.Dir)
		assert.Equal(t, "/opt/dist", cfg.Resources.Dir)
		assert.Equal(t, "x86_64", cfg.Native.ABI)
		assert.Equal(t, "/opt/r8.jar", cfg.Packager.Generic.R8Jar)
	})

	t.Run("empty values leave config untouched", func(t *testing.T) {
		clearEnv(t)

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("log level", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OFFINSTR_LOG_LEVEL", "debug")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		require.NoError(t, cfg.Validate())
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"bad input flag":   func(c *Config) { c.Packager.InputFlag = "injars" },
		"empty abi":        func(c *Config) { c.Native.ABI = " " },
		"no distribution":  func(c *Config) { c.Resources.Distribution = "" },
		"class major high": func(c *Config) { c.Agent.MaxClassMajor = 70000 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
