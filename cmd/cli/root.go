// Package cli provides the command-line interface for the lanscan network
// discovery engine. It implements the Cobra-based command tree for running
// scan sessions, serving the API, and managing networks and stored history.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/lanscan/internal/config"
	"github.com/anstrom/lanscan/internal/logging"
)

const (
	envPrefix         = "LANSCAN"
	defaultConfigFile = "config.yaml"
)

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "lanscan",
	Short: "LAN discovery and enrichment engine",
	Long: `lanscan discovers live hosts on local network ranges and enriches each
one with its reverse name, hardware address, vendor, operating system guess
and open ports. Sessions can run from the command line, on a schedule, or be
driven through the HTTP API.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// normalizeFlagName accepts config-style spellings such as --no_schedule.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	initLogging()
}

// getConfigFilePath returns the config file in use, falling back to the
// default name in the working directory.
func getConfigFilePath() string {
	if path := viper.ConfigFileUsed(); path != "" {
		return path
	}
	if cfgFile != "" {
		return cfgFile
	}
	return defaultConfigFile
}

// loadConfig loads the config file and applies LANSCAN_* environment and
// bound flag overrides on top of it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyOverrides copies the settings viper knows about from flags or the
// environment into cfg. Keys mirror the YAML layout, so
// LANSCAN_API_PORT overrides api.port.
func applyOverrides(cfg *config.Config) {
	if viper.IsSet("networks_file") {
		cfg.NetworksFile = viper.GetString("networks_file")
	}
	if viper.IsSet("api.host") {
		cfg.API.Host = viper.GetString("api.host")
	}
	if viper.IsSet("api.port") {
		cfg.API.Port = viper.GetInt("api.port")
	}
	if viper.IsSet("storage.results_dir") {
		cfg.Storage.ResultsDir = viper.GetString("storage.results_dir")
	}
	if viper.IsSet("storage.json_enabled") {
		cfg.Storage.JSONEnabled = viper.GetBool("storage.json_enabled")
	}
	if viper.IsSet("storage.database.driver") {
		cfg.Storage.Database.Driver = viper.GetString("storage.database.driver")
	}
	if viper.IsSet("storage.database.dsn") {
		cfg.Storage.Database.DSN = viper.GetString("storage.database.dsn")
	}
	if viper.IsSet("storage.database.path") {
		cfg.Storage.Database.Path = viper.GetString("storage.database.path")
	}
	if viper.IsSet("discovery.nmap_path") {
		cfg.Discovery.NmapPath = viper.GetString("discovery.nmap_path")
	}
	if viper.IsSet("discovery.privileged_ping") {
		cfg.Discovery.PrivilegedPing = viper.GetBool("discovery.privileged_ping")
	}
	if viper.IsSet("discovery.dns_server") {
		cfg.Discovery.DNSServer = viper.GetString("discovery.dns_server")
	}
	if viper.IsSet("discovery.oui_file") {
		cfg.Discovery.OUIFile = viper.GetString("discovery.oui_file")
	}
	if viper.IsSet("logging.level") {
		cfg.Logging.Level = logging.LogLevel(viper.GetString("logging.level"))
	}
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}
	applyOverrides(cfg)

	logConfig := cfg.Logging
	if verbose {
		logConfig.Level = logging.LevelDebug
	}
	logConfig.AddSource = logConfig.Level == logging.LevelDebug

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)

	if verbose {
		logging.Info("Structured logging initialized", "level", logConfig.Level, "format", logConfig.Format)
	}
}
