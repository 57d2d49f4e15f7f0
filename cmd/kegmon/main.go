// Keg Monitor Core
//
// This is the main entry point for the keg monitor backend. It serves the
// REST and WebSocket API that keg monitor firmware, dashboards and mobile
// clients use, and relays commands to the devices through their cloud.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/nerrad567/keg-monitor-core/migrations"

	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/database"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default file locations.
const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvFile    = ".env"
)

// options are the persistent root flags.
type options struct {
	configPath string
	envFile    string
}

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command serves the API.
func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "kegmon",
		Short:         "Keg monitor command and telemetry core",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(opts.envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to config.yaml (default $KEGMON_CONFIG or "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", defaultEnvFile,
		"dotenv file loaded before configuration")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newUserCmd(opts),
		newTokenCmd(),
	)
	return root
}

// loadEnvFile reads a dotenv file into the process environment. A missing
// default file is not an error; variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) && path == defaultEnvFile {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// getConfigPath returns the configuration file path: the flag, then
// KEGMON_CONFIG, then the default.
func (o *options) getConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	if path := os.Getenv("KEGMON_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads the configuration file. Only a missing default file
// falls back to built-in defaults.
func (o *options) loadConfig(log *logging.Logger) (*config.Config, error) {
	path := o.getConfigPath()

	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) && path == defaultConfigPath {
		log.Warn("config file not found, using defaults", "path", path)
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", path)
	return cfg, nil
}

// openDatabase opens and migrates the database.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")
	return db, nil
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.Default()
			cfg, err := opts.loadConfig(log)
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg.Database, logging.New(cfg.Logging, version))
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}
