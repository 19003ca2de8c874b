// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Actuator ActuatorConfig `mapstructure:"actuator"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// BridgeConfig contains source and destination chain configuration
type BridgeConfig struct {
	SourceNodeURL      string        `mapstructure:"source_node_url"`
	SourceBackupNodes  []string      `mapstructure:"source_backup_nodes"`
	DestinationNodeURL string        `mapstructure:"destination_node_url"` // informational; dispatch goes through the actuator
	ContractAddress    string        `mapstructure:"contract_address"`
	NetworkID          int           `mapstructure:"network_id"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RetryAttempts      int           `mapstructure:"retry_attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // sqlite, postgres, memory
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
}

// RelayConfig contains the poll loop configuration
type RelayConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	ConfirmationBlocks uint64        `mapstructure:"confirmation_blocks"`
	LookbackBlocks     uint64        `mapstructure:"lookback_blocks"`
	BackoffMultiplier  int           `mapstructure:"backoff_multiplier"`
}

// OracleConfig contains price oracle configuration
type OracleConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	AssetID        string        `mapstructure:"asset_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ActuatorConfig contains destination action configuration
type ActuatorConfig struct {
	Type           string        `mapstructure:"type"` // log, webhook
	WebhookURL     string        `mapstructure:"webhook_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./internal/config")
	}

	viper.SetEnvPrefix("BRIDGE_RELAY")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override with environment variables if present
	if nodeURL := os.Getenv("SOURCE_CHAIN_RPC"); nodeURL != "" {
		config.Bridge.SourceNodeURL = nodeURL
	}
	if destURL := os.Getenv("DESTINATION_CHAIN_RPC"); destURL != "" {
		config.Bridge.DestinationNodeURL = destURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Storage.ConnectionString = dbURL
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "bridge-relay")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Bridge defaults
	viper.SetDefault("bridge.source_node_url", "https://rpc.sepolia.org")
	viper.SetDefault("bridge.destination_node_url", "")
	viper.SetDefault("bridge.contract_address", "")
	viper.SetDefault("bridge.network_id", 11155111)
	viper.SetDefault("bridge.request_timeout", "10s")
	viper.SetDefault("bridge.retry_attempts", 3)
	viper.SetDefault("bridge.retry_delay", "5s")

	// Storage defaults
	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.connection_string", "./data/relay.db")
	viper.SetDefault("storage.max_connections", 25)
	viper.SetDefault("storage.max_idle_time", "15m")

	// Relay defaults
	viper.SetDefault("relay.poll_interval", "10s")
	viper.SetDefault("relay.confirmation_blocks", 12)
	viper.SetDefault("relay.lookback_blocks", 10)
	viper.SetDefault("relay.backoff_multiplier", 2)

	// Oracle defaults
	viper.SetDefault("oracle.enabled", true)
	viper.SetDefault("oracle.base_url", "https://api.coingecko.com/api/v3/simple/price")
	viper.SetDefault("oracle.asset_id", "ethereum")
	viper.SetDefault("oracle.request_timeout", "5s")

	// Actuator defaults
	viper.SetDefault("actuator.type", "log")
	viper.SetDefault("actuator.request_timeout", "10s")

	// Server defaults
	viper.SetDefault("server.port", 8081)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.enable_metrics", true)
	viper.SetDefault("server.enable_health", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration. A failure here is the only
// unrecoverable startup error the service recognizes.
func (c *Config) Validate() error {
	if c.Bridge.SourceNodeURL == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration, "source node URL is required")
	}
	if c.Bridge.ContractAddress == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration, "bridge contract address is required")
	}
	if !utils.IsValidAddress(c.Bridge.ContractAddress) {
		return utils.NewAppError(utils.ErrCodeConfiguration, "malformed bridge contract address", c.Bridge.ContractAddress)
	}
	if c.Relay.PollInterval <= 0 {
		return utils.NewAppError(utils.ErrCodeConfiguration, "relay poll interval must be positive")
	}
	if c.Relay.BackoffMultiplier <= 0 {
		return utils.NewAppError(utils.ErrCodeConfiguration, "relay backoff multiplier must be positive")
	}
	if c.Storage.ConnectionString == "" && c.Storage.Type != "memory" {
		return utils.NewAppError(utils.ErrCodeConfiguration, "storage connection string is required")
	}
	if c.Actuator.Type == "webhook" && c.Actuator.WebhookURL == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration, "webhook actuator requires a URL")
	}
	return nil
}
