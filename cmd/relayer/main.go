// File: cmd/relayer/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartdevs17/bridge-relay/internal/actuator"
	"github.com/smartdevs17/bridge-relay/internal/config"
	"github.com/smartdevs17/bridge-relay/internal/connection"
	"github.com/smartdevs17/bridge-relay/internal/metrics"
	"github.com/smartdevs17/bridge-relay/internal/oracle"
	"github.com/smartdevs17/bridge-relay/internal/reconciler"
	"github.com/smartdevs17/bridge-relay/internal/relay"
	"github.com/smartdevs17/bridge-relay/internal/scanner"
	"github.com/smartdevs17/bridge-relay/internal/server"
	"github.com/smartdevs17/bridge-relay/internal/storage"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application wires the relay components together
type Application struct {
	config     *config.Config
	connection *connection.ConnectionManager
	store      storage.Store
	driver     *relay.Driver
	server     *server.HTTPServer
	metrics    *metrics.Metrics
	ctx        context.Context
	cancel     context.CancelFunc
	driverDone chan error
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config:     cfg,
		ctx:        ctx,
		cancel:     cancel,
		driverDone: make(chan error, 1),
	}

	if err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.File); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, err
	}

	return app, nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	logger := utils.GetLogger()
	logger.Info("Initializing bridge relay components")

	app.metrics = metrics.NewMetrics()

	// Source chain connection
	app.connection = connection.NewConnectionManager(&app.config.Bridge)

	// Checkpoint and dedup store
	store, err := storage.NewStore(&app.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	if err := store.Connect(); err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("failed to run storage migrations: %w", err)
	}
	app.store = store

	// Price oracle
	var priceOracle oracle.PriceOracle
	if app.config.Oracle.Enabled {
		priceOracle = oracle.NewCoinGeckoOracle(&app.config.Oracle)
	}

	// Destination actuator
	act, err := actuator.NewActuator(&app.config.Actuator)
	if err != nil {
		return fmt.Errorf("failed to create actuator: %w", err)
	}

	// Reconciler and driver
	contract := common.HexToAddress(app.config.Bridge.ContractAddress)
	rec, err := reconciler.New(app.connection, app.store, priceOracle, act, contract, app.metrics)
	if err != nil {
		return fmt.Errorf("failed to create reconciler: %w", err)
	}

	sc := scanner.New(app.config.Relay.ConfirmationBlocks, app.config.Relay.LookbackBlocks)
	app.driver = relay.NewDriver(app.connection, app.store, sc, rec, &app.config.Relay, app.metrics)

	// HTTP server
	app.server = server.NewHTTPServer(&app.config.Server, app.store, app.driver, app.connection)

	logger.Info("All components initialized successfully")
	return nil
}

// Start starts the application
func (app *Application) Start() error {
	logger := utils.GetLogger()
	logger.Info("Starting bridge relay",
		"version", AppVersion,
		"contract", app.config.Bridge.ContractAddress,
		"source", app.config.Bridge.SourceNodeURL)

	if err := app.server.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	go func() {
		app.driverDone <- app.driver.Run(app.ctx)
	}()

	return nil
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	logger := utils.GetLogger()
	logger.Info("Stopping bridge relay")

	app.cancel()
	<-app.driverDone

	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			logger.Error("Failed to stop HTTP server", "error", err)
		}
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}

	if app.connection != nil {
		if err := app.connection.Close(); err != nil {
			logger.Error("Failed to close connection", "error", err)
		}
	}

	logger.Info("Bridge relay stopped")
	return nil
}

// CLI Commands

var rootCmd = &cobra.Command{
	Use:     "bridge-relay",
	Short:   "Cross-chain bridge event relay",
	Long:    `A reorg-safe, crash-recoverable relay that reconciles TokensLocked events from a source chain bridge contract against a destination-side action, exactly once per event.`,
	Version: AppVersion,
	RunE:    runRelay,
}

// runRelay is the main command to run the relay
func runRelay(cmd *cobra.Command, args []string) error {
	configPath := viper.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping relay...")

	return app.Stop()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bridge-relay %s\n", AppVersion)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("Source node: %s\n", cfg.Bridge.SourceNodeURL)
		fmt.Printf("Contract: %s\n", cfg.Bridge.ContractAddress)
		fmt.Printf("Storage: %s\n", cfg.Storage.Type)
		fmt.Printf("Confirmations: %d\n", cfg.Relay.ConfirmationBlocks)

		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connectivity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		fmt.Println("Testing bridge relay connectivity...")

		fmt.Printf("Testing source chain connection to %s...\n", cfg.Bridge.SourceNodeURL)
		conn := connection.NewConnectionManager(&cfg.Bridge)
		defer conn.Close()
		if _, err := conn.CurrentHeight(cmd.Context()); err != nil {
			return fmt.Errorf("failed to reach source chain node: %w", err)
		}
		fmt.Println("✓ Source chain connection successful")

		fmt.Printf("Testing storage connection (%s)...\n", cfg.Storage.Type)
		store, err := storage.NewStore(&cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()
		if err := store.Connect(); err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
		fmt.Println("✓ Storage connection successful")

		fmt.Println("\nAll connectivity tests passed! ✓")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(testCmd)
	configCmd.AddCommand(validateConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
