// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"pos-device-service/internal/model"
)

// Config represents the application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Hardware  HardwareConfig  `mapstructure:"hardware"`
	Fiscal    FiscalConfig    `mapstructure:"fiscal"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	MigrationsPath string        `mapstructure:"migrations_path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// WorkerConfig represents the hardware command worker timing
type WorkerConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	PollTimeout      time.Duration `mapstructure:"poll_timeout"`
}

// HardwareConfig represents device configuration and connection policy
type HardwareConfig struct {
	// DeviceSource is "database" or "config"
	DeviceSource    string          `mapstructure:"device_source"`
	RetryAttempts   int             `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration   `mapstructure:"retry_delay"`
	KitchenFallback bool            `mapstructure:"kitchen_fallback"`
	ConnectOnStart  bool            `mapstructure:"connect_on_start"`
	Devices         []DeviceConfig  `mapstructure:"devices"`
	Transport       TransportConfig `mapstructure:"transport"`
}

// TransportConfig holds timeouts of the physical links
type TransportConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	USBTimeout     time.Duration `mapstructure:"usb_timeout"`
}

// DeviceConfig is one device declared in the configuration file
type DeviceConfig struct {
	Name       string             `mapstructure:"name"`
	Roles      []string           `mapstructure:"roles"`
	Driver     string             `mapstructure:"driver"`
	Port       string             `mapstructure:"port"`
	Serial     model.SerialConfig `mapstructure:"serial"`
	Enabled    bool               `mapstructure:"enabled"`
	ItemGroups []string           `mapstructure:"item_groups"`
}

// FiscalConfig represents receipt and tax settings
type FiscalConfig struct {
	AllowSaleWithoutReceipt bool              `mapstructure:"allow_sale_without_receipt"`
	PrintSaleBarcode        bool              `mapstructure:"print_sale_barcode"`
	ReceiptSignature        string            `mapstructure:"receipt_signature"`
	HeaderLines             []string          `mapstructure:"header_lines"`
	VATGroups               []VATGroupConfig  `mapstructure:"vat_groups"`
	InvoiceCopies           int               `mapstructure:"invoice_copies"`
	ReceiptWidth            int               `mapstructure:"receipt_width"`
	ShowTotalOnDisplay      bool              `mapstructure:"show_total_on_display"`
	CodePage                string            `mapstructure:"code_page"`
	Language                string            `mapstructure:"language"`
	Texts                   map[string]string `mapstructure:"texts"`
}

// VATGroupConfig is a configured tax group; the rate is a decimal string
type VATGroupConfig struct {
	Code string `mapstructure:"code"`
	Rate string `mapstructure:"rate"`
}

// DiscoveryConfig controls port discovery
type DiscoveryConfig struct {
	SerialEnabled bool          `mapstructure:"serial_enabled"`
	USBEnabled    bool          `mapstructure:"usb_enabled"`
	TCPHosts      []string      `mapstructure:"tcp_hosts"`
	TCPPorts      []int         `mapstructure:"tcp_ports"`
	TCPTimeout    time.Duration `mapstructure:"tcp_timeout"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load loads configuration from file and environment variables
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Environment variable support
	v.SetEnvPrefix("POS_DEVICE_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// defaults and environment are enough to start
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "pos-device-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "pos_device_service")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "file://migrations")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Worker defaults
	v.SetDefault("worker.poll_interval", "3s")
	v.SetDefault("worker.progress_interval", "100ms")
	v.SetDefault("worker.poll_timeout", "10s")

	// Hardware defaults
	v.SetDefault("hardware.device_source", "database")
	v.SetDefault("hardware.retry_attempts", 3)
	v.SetDefault("hardware.retry_delay", "2s")
	v.SetDefault("hardware.kitchen_fallback", true)
	v.SetDefault("hardware.connect_on_start", true)
	v.SetDefault("hardware.transport.connect_timeout", "5s")
	v.SetDefault("hardware.transport.read_timeout", "3s")
	v.SetDefault("hardware.transport.write_timeout", "3s")
	v.SetDefault("hardware.transport.usb_timeout", "5s")

	// Fiscal defaults
	v.SetDefault("fiscal.allow_sale_without_receipt", false)
	v.SetDefault("fiscal.print_sale_barcode", false)
	v.SetDefault("fiscal.invoice_copies", 1)
	v.SetDefault("fiscal.receipt_width", 42)
	v.SetDefault("fiscal.show_total_on_display", true)
	v.SetDefault("fiscal.code_page", "cp437")
	v.SetDefault("fiscal.language", "en")

	// Discovery defaults
	v.SetDefault("discovery.serial_enabled", true)
	v.SetDefault("discovery.usb_enabled", true)
	v.SetDefault("discovery.tcp_ports", []int{9100})
	v.SetDefault("discovery.tcp_timeout", "500ms")

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	validSources := []string{"database", "config"}
	if !contains(validSources, config.Hardware.DeviceSource) {
		return fmt.Errorf("hardware.device_source must be one of: %v", validSources)
	}
	if config.Hardware.RetryAttempts < 0 {
		return fmt.Errorf("hardware.retry_attempts must not be negative")
	}
	if config.Fiscal.InvoiceCopies < 0 {
		return fmt.Errorf("fiscal.invoice_copies must not be negative")
	}

	for i, d := range config.Hardware.Devices {
		if _, err := d.ToDevice(); err != nil {
			return fmt.Errorf("hardware.devices[%d]: %w", i, err)
		}
	}
	if _, err := config.Fiscal.ParseVATGroups(); err != nil {
		return err
	}

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// ToDevice converts the declaration into a device. The id is derived from
// the name so it stays stable across restarts.
func (d DeviceConfig) ToDevice() (*model.Device, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("device name is required")
	}
	if d.Driver == "" {
		return nil, fmt.Errorf("device %s: driver is required", d.Name)
	}
	if d.Port == "" {
		return nil, fmt.Errorf("device %s: port is required", d.Name)
	}

	var roles model.DeviceRole
	for _, name := range d.Roles {
		role, ok := model.ParseDeviceRole(name)
		if !ok {
			return nil, fmt.Errorf("device %s: unknown role %q", d.Name, name)
		}
		roles |= role
	}
	if roles == 0 {
		return nil, fmt.Errorf("device %s: at least one role is required", d.Name)
	}

	return &model.Device{
		ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte("device:"+d.Name)),
		Name:       d.Name,
		Roles:      roles,
		DriverType: d.Driver,
		Port:       d.Port,
		Serial:     d.Serial,
		Enabled:    d.Enabled,
		ItemGroups: d.ItemGroups,
	}, nil
}

// ToDevices converts every declared device
func (c *HardwareConfig) ToDevices() ([]*model.Device, error) {
	devices := make([]*model.Device, 0, len(c.Devices))
	for _, d := range c.Devices {
		device, err := d.ToDevice()
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, nil
}

// ParseVATGroups converts the configured VAT groups
func (c *FiscalConfig) ParseVATGroups() ([]model.VATGroup, error) {
	groups := make([]model.VATGroup, 0, len(c.VATGroups))
	for _, g := range c.VATGroups {
		rate, err := decimal.NewFromString(g.Rate)
		if err != nil {
			return nil, fmt.Errorf("fiscal.vat_groups %s: invalid rate %q: %w", g.Code, g.Rate, err)
		}
		groups = append(groups, model.VATGroup{Code: g.Code, Rate: rate})
	}
	return groups, nil
}

// DSN returns the lib/pq connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
