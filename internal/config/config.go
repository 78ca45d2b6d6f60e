package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all offinstr configuration.
type Config struct {
	// Stage configures the working directory agent output is staged in.
	Stage StageConfig `yaml:"stage"`

	// Resources locates the bundled runtime distribution.
	Resources ResourceConfig `yaml:"resources"`

	// Agent selects and configures the transformation agent.
	Agent AgentConfig `yaml:"agent"`

	// Native configures native payload injection.
	Native NativeConfig `yaml:"native"`

	// Packager configures the downstream packaging tools.
	Packager PackagerConfig `yaml:"packager"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StageConfig configures the working directory.
type StageConfig struct {
	// Dir is the staging directory. Empty means a fresh temp directory.
	Dir string `yaml:"dir"`

	// IsolateArchives resets the stage before every archive in a batch.
	// When false the stage is only cleared (top level) once per batch.
	IsolateArchives bool `yaml:"isolate_archives"`

	// Keep leaves a tool-created temp stage on disk after exit.
	Keep bool `yaml:"keep"`
}

// ResourceConfig describes where the runtime distribution lives.
type ResourceConfig struct {
	Dir          string `yaml:"dir"`
	Distribution string `yaml:"distribution"`  // file name inside Dir
	BootstrapJar string `yaml:"bootstrap_jar"` // entry inside the distribution
	RuntimeJar   string `yaml:"runtime_jar"`   // entry inside the distribution
}

// AgentConfig configures the transformation agent.
type AgentConfig struct {
	Kind          string   `yaml:"kind"` // exec, passthrough
	Command       string   `yaml:"command"`
	Args          []string `yaml:"args"`
	UnitTimeout   string   `yaml:"unit_timeout"`
	MaxClassMajor int      `yaml:"max_class_major"`
}

// NativeConfig configures native payload injection.
type NativeConfig struct {
	ABI    string `yaml:"abi"`
	Inject bool   `yaml:"inject"`
}

// PackagerConfig configures the downstream packagers tried by `wrap`.
type PackagerConfig struct {
	InputFlag string                 `yaml:"input_flag"`
	Platform  PlatformPackagerConfig `yaml:"platform"`
	Generic   GenericPackagerConfig  `yaml:"generic"`
}

// PlatformPackagerConfig configures the build-system specific packager.
type PlatformPackagerConfig struct {
	Binary string `yaml:"binary"`
}

// GenericPackagerConfig configures the plain R8 packager.
type GenericPackagerConfig struct {
	Java      string `yaml:"java"`
	R8Jar     string `yaml:"r8_jar"`
	MainClass string `yaml:"main_class"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Stage: StageConfig{
			IsolateArchives: true,
		},
		Resources: ResourceConfig{
			Dir:          "resources",
			Distribution: "jazzer_android.jar",
			BootstrapJar: "com/code_intelligence/jazzer/runtime/jazzer_bootstrap.jar",
			RuntimeJar:   "com/code_intelligence/jazzer/jazzer.jar",
		},
		Agent: AgentConfig{
			Kind:          "exec",
			UnitTimeout:   "30s",
			MaxClassMajor: 65,
		},
		Native: NativeConfig{
			ABI: "arm64-v8a",
		},
		Packager: PackagerConfig{
			InputFlag: "-injars",
			Platform: PlatformPackagerConfig{
				Binary: "r8wrapper",
			},
			Generic: GenericPackagerConfig{
				Java:      "java",
				MainClass: "com.android.tools.r8.R8",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("OFFINSTR_STAGE_DIR"); dir != "" {
		c.Stage.Dir = dir
	}
	if dir := os.Getenv("OFFINSTR_RESOURCE_DIR"); dir != "" {
		c.Resources.Dir = dir
	}
	if cmd := os.Getenv("OFFINSTR_AGENT"); cmd != "" {
		c.Agent.Kind = "exec"
		c.Agent.Command = cmd
	}
	if abi := os.Getenv("OFFINSTR_ABI"); abi != "" {
		c.Native.ABI = abi
	}
	if jar := os.Getenv("OFFINSTR_R8_JAR"); jar != "" {
		c.Packager.Generic.R8Jar = jar
	}
	if lvl := os.Getenv("OFFINSTR_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
}

// Validate checks the fields other packages rely on.
func (c *Config) Validate() error {
	switch c.Agent.Kind {
	case "exec", "passthrough":
	default:
		return fmt.Errorf("unknown agent kind %q", c.Agent.Kind)
	}
	if strings.TrimSpace(c.Resources.Distribution) == "" {
		return fmt.Errorf("resources.distribution is required")
	}
	if strings.TrimSpace(c.Native.ABI) == "" {
		return fmt.Errorf("native.abi is required")
	}
	if !strings.HasPrefix(c.Packager.InputFlag, "-") {
		return fmt.Errorf("packager.input_flag must start with '-', got %q", c.Packager.InputFlag)
	}
	if c.Agent.MaxClassMajor < 0 || c.Agent.MaxClassMajor > 0xFFFF {
		return fmt.Errorf("agent.max_class_major out of range: %d", c.Agent.MaxClassMajor)
	}
	return nil
}

// GetUnitTimeout returns the per-unit agent timeout as a duration.
func (c *Config) GetUnitTimeout() time.Duration {
	d, err := time.ParseDuration(c.Agent.UnitTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
