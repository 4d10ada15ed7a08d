// Package config provides configuration file parsing.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/fgeck/devicectl/internal/models"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.InventoryConfig, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.InventoryConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

type rawSSH struct {
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Passphrase   string `mapstructure:"passphrase"`
	KeyPath      string `mapstructure:"key_path"`
	Agent        string `mapstructure:"agent"`
	AgentForward bool   `mapstructure:"agent_forward"`
	KnownHosts   string `mapstructure:"known_hosts"`
}

type rawWOL struct {
	BroadcastIP string `mapstructure:"broadcast_ip"`
	Port        int    `mapstructure:"port"`
}

type rawDevice struct {
	Name        string        `mapstructure:"name"`
	Hostname    string        `mapstructure:"hostname"`
	Address     string        `mapstructure:"address"`
	MAC         []string      `mapstructure:"mac"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Platform    string        `mapstructure:"platform"`
	Description string        `mapstructure:"description"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Interval    time.Duration `mapstructure:"interval"`
	PingPort    int           `mapstructure:"ping_port"`
	SSH         rawSSH        `mapstructure:"ssh"`
	WOL         rawWOL        `mapstructure:"wol"`
}

func (p *Parser) parse() (*models.InventoryConfig, error) {
	var defaults rawDevice
	if p.v.IsSet("defaults") {
		if err := p.v.UnmarshalKey("defaults", &defaults); err != nil {
			return nil, fmt.Errorf("parsing defaults: %w", err)
		}
	}

	var raws []rawDevice
	if err := p.v.UnmarshalKey("devices", &raws); err != nil {
		return nil, fmt.Errorf("parsing devices: %w", err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("devices is required")
	}

	cfg := &models.InventoryConfig{}
	for i, raw := range raws {
		if raw.Name == "" {
			return nil, fmt.Errorf("devices[%d].name is required", i)
		}
		dev, err := p.device(merge(raw, defaults))
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", raw.Name, err)
		}
		cfg.Devices = append(cfg.Devices, dev)
	}

	return cfg, nil
}

// merge fills the zero fields of d from def.
//
//nolint:gocyclo // one branch per field
func merge(d, def rawDevice) rawDevice {
	if len(d.MAC) == 0 {
		d.MAC = def.MAC
	}
	if d.Username == "" {
		d.Username = def.Username
	}
	if d.Password == "" {
		d.Password = def.Password
	}
	if d.Platform == "" {
		d.Platform = def.Platform
	}
	if d.Timeout == 0 {
		d.Timeout = def.Timeout
	}
	if d.Interval == 0 {
		d.Interval = def.Interval
	}
	if d.PingPort == 0 {
		d.PingPort = def.PingPort
	}
	if d.SSH.Port == 0 {
		d.SSH.Port = def.SSH.Port
	}
	if d.SSH.Username == "" {
		d.SSH.Username = def.SSH.Username
	}
	if d.SSH.Password == "" {
		d.SSH.Password = def.SSH.Password
	}
	if d.SSH.Passphrase == "" {
		d.SSH.Passphrase = def.SSH.Passphrase
	}
	if d.SSH.KeyPath == "" {
		d.SSH.KeyPath = def.SSH.KeyPath
	}
	if d.SSH.Agent == "" {
		d.SSH.Agent = def.SSH.Agent
	}
	if !d.SSH.AgentForward {
		d.SSH.AgentForward = def.SSH.AgentForward
	}
	if d.SSH.KnownHosts == "" {
		d.SSH.KnownHosts = def.SSH.KnownHosts
	}
	if d.WOL.BroadcastIP == "" {
		d.WOL.BroadcastIP = def.WOL.BroadcastIP
	}
	if d.WOL.Port == 0 {
		d.WOL.Port = def.WOL.Port
	}
	return d
}

func (p *Parser) device(raw rawDevice) (models.Device, error) {
	dev := models.Device{
		Name:        raw.Name,
		Hostname:    raw.Hostname,
		Address:     raw.Address,
		MACs:        raw.MAC,
		Username:    p.expandEnv(raw.Username),
		Password:    p.expandEnv(raw.Password),
		Platform:    raw.Platform,
		Description: raw.Description,
		Timeout:     raw.Timeout,
		Interval:    raw.Interval,
		PingPort:    raw.PingPort,
		SSH: models.SSHConfig{
			Port:         raw.SSH.Port,
			Username:     p.expandEnv(raw.SSH.Username),
			Password:     p.expandEnv(raw.SSH.Password),
			Passphrase:   p.expandEnv(raw.SSH.Passphrase),
			AgentForward: raw.SSH.AgentForward,
		},
		WOL: models.WOLConfig{
			BroadcastIP: raw.WOL.BroadcastIP,
			Port:        raw.WOL.Port,
		},
	}

	var err error
	if dev.SSH.KeyPath, err = p.expandPath(raw.SSH.KeyPath); err != nil {
		return dev, err
	}
	if dev.SSH.KnownHosts, err = p.expandPath(raw.SSH.KnownHosts); err != nil {
		return dev, err
	}
	if dev.SSH.Agent, err = p.expandPath(raw.SSH.Agent); err != nil {
		return dev, err
	}

	// Set defaults.
	if dev.Hostname == "" {
		dev.Hostname = dev.Name
	}
	if dev.Address == "" && net.ParseIP(dev.Name) != nil {
		dev.Address = dev.Name
	}
	if dev.Username == "" {
		dev.Username = defaultUsername()
	}
	if dev.Timeout == 0 {
		dev.Timeout = models.DefaultTimeout
	}
	if dev.Interval == 0 {
		dev.Interval = models.DefaultInterval
	}
	if dev.SSH.Port == 0 {
		dev.SSH.Port = models.DefaultSSHPort
	}
	if dev.PingPort == 0 {
		dev.PingPort = dev.SSH.Port
	}
	if dev.SSH.Agent == "" {
		dev.SSH.Agent = os.Getenv("SSH_AUTH_SOCK")
	}
	if dev.WOL.BroadcastIP == "" {
		dev.WOL.BroadcastIP = models.DefaultBroadcastIP
	}
	if dev.WOL.Port == 0 {
		dev.WOL.Port = models.DefaultWOLPort
	}

	return dev, nil
}

func defaultUsername() string {
	if u := os.Getenv("SUDO_USER"); u != "" {
		return u
	}
	return os.Getenv("USER")
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// expandPath expands environment variables and a leading ~.
func (p *Parser) expandPath(s string) (string, error) {
	path, err := homedir.Expand(p.expandEnv(s))
	if err != nil {
		return "", fmt.Errorf("expanding path %q: %w", s, err)
	}
	return path, nil
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.InventoryConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}
	if len(cfg.Devices) == 0 {
		return fmt.Errorf("devices is required")
	}

	var errs []error
	seen := make(map[string]bool, len(cfg.Devices))
	for i, dev := range cfg.Devices {
		if dev.Name == "" {
			errs = append(errs, fmt.Errorf("devices[%d].name is required", i))
			continue
		}
		if seen[dev.Name] {
			errs = append(errs, fmt.Errorf("device %s: duplicate name", dev.Name))
		}
		seen[dev.Name] = true

		if err := validateDevice(dev); err != nil {
			errs = append(errs, fmt.Errorf("device %s: %w", dev.Name, err))
		}
	}

	return errors.Join(errs...)
}

func validateDevice(dev models.Device) error {
	var errs []error

	for _, p := range []struct {
		name  string
		value int
	}{
		{"ping_port", dev.PingPort},
		{"ssh.port", dev.SSH.Port},
		{"wol.port", dev.WOL.Port},
	} {
		if p.value < 1 || p.value > 65535 {
			errs = append(errs, fmt.Errorf("%s must be between 1 and 65535, got %d", p.name, p.value))
		}
	}

	for _, mac := range dev.MACs {
		if _, err := net.ParseMAC(mac); err != nil {
			errs = append(errs, fmt.Errorf("invalid mac %q: %w", mac, err))
		}
	}

	if dev.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if dev.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive"))
	}
	if net.ParseIP(dev.WOL.BroadcastIP) == nil {
		errs = append(errs, fmt.Errorf("wol.broadcast_ip %q is not an IP address", dev.WOL.BroadcastIP))
	}

	return errors.Join(errs...)
}
