package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models gymgate.yml.
type Config struct {
	Facility struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"facility"`
	CheckIn struct {
		EarlyMinutes int `yaml:"early_minutes"`
		LateMinutes  int `yaml:"late_minutes"`
	} `yaml:"checkin"`
	Tokens struct {
		MemberSecret     string `yaml:"member_secret"`
		MemberTTLMinutes int    `yaml:"member_ttl_minutes"`
		StaffSecret      string `yaml:"staff_secret"`
	} `yaml:"tokens"`
	Disciplines map[string]DisciplineSeed `yaml:"disciplines"`
	Plans       map[string]PlanSeed       `yaml:"plans"`
}

// DisciplineSeed describes a discipline to ensure at startup.
type DisciplineSeed struct {
	RequiresReservation bool   `yaml:"requires_reservation"`
	Description         string `yaml:"description"`
}

// PlanSeed describes a plan preset. Credits 0 means unlimited.
type PlanSeed struct {
	Discipline string `yaml:"discipline"`
	Credits    int    `yaml:"credits"`
	ValidDays  int    `yaml:"valid_days"`
}

// EarlyWindow returns how long before a class start check-in opens.
func (c *Config) EarlyWindow() time.Duration {
	return time.Duration(c.CheckIn.EarlyMinutes) * time.Minute
}

// LateWindow returns how long after a class start check-in stays open.
func (c *Config) LateWindow() time.Duration {
	return time.Duration(c.CheckIn.LateMinutes) * time.Minute
}

// MemberTokenTTL returns the lifetime of issued member tokens.
func (c *Config) MemberTokenTTL() time.Duration {
	return time.Duration(c.Tokens.MemberTTLMinutes) * time.Minute
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate with gg config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
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

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Facility.ID == "" {
		return fmt.Errorf("config.facility.id is required")
	}
	if c.CheckIn.EarlyMinutes <= 0 {
		return fmt.Errorf("config.checkin.early_minutes must be positive")
	}
	if c.CheckIn.LateMinutes <= 0 {
		return fmt.Errorf("config.checkin.late_minutes must be positive")
	}
	if c.Tokens.MemberTTLMinutes < 0 {
		return fmt.Errorf("config.tokens.member_ttl_minutes must not be negative")
	}
	for name, p := range c.Plans {
		if p.Discipline == "" {
			return fmt.Errorf("plan %s has no discipline", name)
		}
		if len(c.Disciplines) > 0 {
			if _, ok := c.Disciplines[p.Discipline]; !ok {
				return fmt.Errorf("plan %s references unknown discipline %s", name, p.Discipline)
			}
		}
		if p.Credits < 0 {
			return fmt.Errorf("plan %s has negative credits", name)
		}
		if p.ValidDays <= 0 {
			return fmt.Errorf("plan %s has no validity period", name)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "gymgate.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(facilityID string) string {
	return fmt.Sprintf(defaultTemplate, facilityID)
}

// Default returns the default Config struct for a facility.
func Default(facilityID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, facilityID))).Decode(&cfg)
	cfg.Facility.ID = facilityID
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

const defaultTemplate = `facility:
  id: %s
  name: Main facility

checkin:
  early_minutes: 30
  late_minutes: 20

tokens:
  member_secret: ""
  member_ttl_minutes: 10
  staff_secret: ""

disciplines:
  musculacion:
    requires_reservation: false
    description: "Open gym floor, entry against membership"
  yoga:
    requires_reservation: true
    description: "Scheduled classes, booking required"
  crossfit:
    requires_reservation: true
    description: "Scheduled classes, booking required"

plans:
  gym.monthly:
    discipline: musculacion
    credits: 0
    valid_days: 30
  yoga.8:
    discipline: yoga
    credits: 8
    valid_days: 30
  crossfit.12:
    discipline: crossfit
    credits: 12
    valid_days: 30
`
