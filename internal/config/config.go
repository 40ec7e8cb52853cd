package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models wardline.yml.
type Config struct {
	Workspace struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"workspace"`
	Roles      map[string]Role `yaml:"roles"`
	Candidates struct {
		// RetentionDays bounds how long a soft-deleted pool entry stays
		// restorable before purge is allowed to remove it.
		RetentionDays int `yaml:"retention_days"`
	} `yaml:"candidates"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type Role struct {
	Description string `yaml:"description"`
	// CanManage marks roles allowed to mutate callings, candidates and
	// processes. Reads are open to any workspace member.
	CanManage bool `yaml:"can_manage"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Actions        []string `yaml:"actions"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from the workspace directory.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with wd workspace config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Workspace.ID == "" {
		return fmt.Errorf("config.workspace.id is required")
	}
	if len(c.Roles) > 0 {
		if _, ok := c.Roles["admin"]; !ok {
			return fmt.Errorf("config.roles must include admin")
		}
		for roleID := range c.Roles {
			if roleID == "" {
				return fmt.Errorf("config.roles contains empty role id")
			}
		}
	}
	if c.Candidates.RetentionDays < 0 {
		return fmt.Errorf("config.candidates.retention_days must not be negative")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d has negative timeout", i)
		}
	}
	return nil
}

// ManagingRoles returns the role ids permitted to mutate calling data.
func (c *Config) ManagingRoles() []string {
	if len(c.Roles) == 0 {
		return []string{"admin", "leader"}
	}
	var out []string
	for id, role := range c.Roles {
		if role.CanManage {
			out = append(out, id)
		}
	}
	return out
}

// RetentionDays returns the candidate restore window, defaulting to 30 days.
func (c *Config) RetentionDays() int {
	if c.Candidates.RetentionDays == 0 {
		return 30
	}
	return c.Candidates.RetentionDays
}

// Path returns the config file path for a workspace directory.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "wardline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(workspaceID string) string {
	return fmt.Sprintf(defaultTemplate, workspaceID, workspaceID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a workspace.
func Default(workspaceID string) *Config {
	var cfg Config
	cfg.Workspace.ID = workspaceID
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(workspaceID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `workspace:
  id: %s
  name: %s

roles:
  admin:
    description: "Full workspace control, including member management"
    can_manage: true
  leader:
    description: "Manages callings, candidates and processes"
    can_manage: true
  member:
    description: "Read-only access to calling data"
    can_manage: false

candidates:
  retention_days: 30
`
