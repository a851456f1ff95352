// Package policy loads promptbox configuration and resolves file locations from it.
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendFlatfile = "flatfile"
	BackendSQLite   = "sqlite"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "PROMPTBOX_CONFIG"

// EnvFilePath names the environment variable holding an optional KEY=VALUE file
// loaded before ApplyEnv. Defaults to promptbox.env in the working directory.
const EnvFilePath = "PROMPTBOX_ENV_FILE"

// GlobalStateDir returns the default directory for the log file (~/.config/promptbox).
func GlobalStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "promptbox")
}

// Config holds policy configuration
type Config struct {
	// DataDir is where relative file names below are resolved. Empty means the
	// working directory, where legacy deployments keep their files.
	DataDir         string `yaml:"data_dir" env:"PROMPTBOX_DATA_DIR"`
	SubmissionsFile string `yaml:"submissions_file"`
	AdminRolesFile  string `yaml:"admin_roles_file"`
	SubmitRolesFile string `yaml:"submit_roles_file"`
	KeyFile         string `yaml:"key_file"`
	SQLiteFile      string `yaml:"sqlite_file"`
	Backend         string `yaml:"backend" env:"PROMPTBOX_BACKEND"`

	LogFile  string `yaml:"log_file" env:"PROMPTBOX_LOG_FILE"`
	HTTPPort int    `yaml:"http_port" env:"PROMPTBOX_HTTP_PORT"`

	// BotOwner is the only user allowed to run the exit command.
	BotOwner string `yaml:"bot_owner" env:"PROMPTBOX_OWNER"`

	DumpCooldownSeconds int      `yaml:"getsubmissions_cooldown_seconds"`
	WatchRoleFiles      bool     `yaml:"watch_role_files"`
	EnabledTools        []string `yaml:"enabled_tools"`
}

// DefaultConfig returns the legacy file names, resolved in the working directory.
func DefaultConfig() *Config {
	return &Config{
		SubmissionsFile:     "submissions.txt",
		AdminRolesFile:      "admin_roles.txt",
		SubmitRolesFile:     "submission_roles.txt",
		KeyFile:             "secret.key",
		SQLiteFile:          "promptbox.sqlite",
		Backend:             BackendFlatfile,
		DumpCooldownSeconds: 180,
		WatchRoleFiles:      true,
		EnabledTools:        []string{"*"},
	}
}

// LoadConfig loads configuration from a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error unless required.
func LoadEnvFile(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with any PROMPTBOX_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks values that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	if !slices.Contains([]string{BackendFlatfile, BackendSQLite}, c.Backend) {
		return fmt.Errorf("backend must be %q or %q, got %q", BackendFlatfile, BackendSQLite, c.Backend)
	}
	if c.DumpCooldownSeconds < 0 {
		return fmt.Errorf("getsubmissions_cooldown_seconds must not be negative")
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d out of range", c.HTTPPort)
	}
	return nil
}

// Policy answers configuration questions for the rest of the program.
type Policy struct {
	config *Config
}

// New creates a new policy
func New(cfg *Config) *Policy {
	return &Policy{config: cfg}
}

// Config returns the underlying configuration.
func (p *Policy) Config() *Config { return p.config }

func (p *Policy) resolve(name string) string {
	if filepath.IsAbs(name) || p.config.DataDir == "" {
		return name
	}
	return filepath.Join(p.config.DataDir, name)
}

// SubmissionsFile returns the path of the submissions record.
func (p *Policy) SubmissionsFile() string { return p.resolve(p.config.SubmissionsFile) }

// AdminRolesFile returns the path of the admin-delete allow-list.
func (p *Policy) AdminRolesFile() string { return p.resolve(p.config.AdminRolesFile) }

// SubmitRolesFile returns the path of the can-submit allow-list.
func (p *Policy) SubmitRolesFile() string { return p.resolve(p.config.SubmitRolesFile) }

// KeyFile returns the path of the owner cipher key.
func (p *Policy) KeyFile() string { return p.resolve(p.config.KeyFile) }

// SQLiteFile returns the path of the SQLite database used by the sqlite backend.
func (p *Policy) SQLiteFile() string { return p.resolve(p.config.SQLiteFile) }

// Backend returns the configured storage backend.
func (p *Policy) Backend() string { return p.config.Backend }

// LogFile returns the configured log file path.
// If unset, defaults to ~/.config/promptbox/promptbox.log.
// Set to "none" or "off" to disable file logging entirely.
func (p *Policy) LogFile() string {
	if p.config.LogFile == "" {
		return filepath.Join(GlobalStateDir(), "promptbox.log")
	}
	return p.config.LogFile
}

// HTTPPort returns the port for the HTTP listener; 0 picks a free port.
func (p *Policy) HTTPPort() int { return p.config.HTTPPort }

// BotOwner returns the user allowed to shut the server down.
func (p *Policy) BotOwner() string { return p.config.BotOwner }

// DumpCooldown returns the per-user cooldown of the bulk dump command.
func (p *Policy) DumpCooldown() time.Duration {
	return time.Duration(p.config.DumpCooldownSeconds) * time.Second
}

// WatchRoleFiles reports whether role files should be reloaded on external edits.
// Only meaningful for the flatfile backend.
func (p *Policy) WatchRoleFiles() bool {
	return p.config.WatchRoleFiles && p.config.Backend == BackendFlatfile
}

// IsToolEnabled checks if a tool is enabled
func (p *Policy) IsToolEnabled(name string) bool {
	for _, t := range p.config.EnabledTools {
		if t == "*" || t == name {
			return true
		}
	}
	return false
}
