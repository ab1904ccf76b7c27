// Binance account history exporter CLI
// This application pulls the complete fiat withdrawal, convert trade, and
// deposit history of a Binance account and stores it in a local database,
// one row per provider record, safe to re-run at any time.
//
// Usage:
//
//	binance-export
//	binance-export --from-date 2022-06
//	binance-export -d 2023-01 --storage postgres
//	binance-export --db ./history.db --log-level debug
//
// For detailed help, use: binance-export --help
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mlukasik/go-binance-export/internal/binance"
	"github.com/mlukasik/go-binance-export/internal/config"
	"github.com/mlukasik/go-binance-export/internal/export"
	"github.com/mlukasik/go-binance-export/internal/logger"
	"github.com/mlukasik/go-binance-export/internal/storage"
)

// CLI version information
const (
	Version    = "1.0.0"
	AppName    = "binance-export"
	ConfigFile = "binance_export.json"
)

// Exit codes following standard conventions
const (
	ExitSuccess       = 0
	ExitUsageError    = 1
	ExitConfigError   = 2
	ExitConnectionErr = 3
	ExitDataError     = 4
	ExitInterrupt     = 130
)

// Flags represents the parsed command line arguments
type Flags struct {
	FromDate      string
	ConfigPath    string
	StorageType   string
	DatabasePath  string
	DatabaseURL   string
	MonthInterval int
	RequestDelay  string
	LogLevel      string
	LogFormat     string
	Version       bool
	Help          bool
}

// CLI represents the main CLI application
type CLI struct {
	config     *config.AppConfig
	logManager *logger.LoggerManager
	logger     *logger.ComponentLogger
	store      storage.LedgerStore
	client     *binance.Client
	runner     *export.Runner
}

// main is the entry point for the CLI application
func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage()
		os.Exit(ExitUsageError)
	}

	if flags.Help {
		printUsage()
		return
	}
	if flags.Version {
		fmt.Printf("%s version %s\n", AppName, Version)
		return
	}

	// Reject a malformed start month before anything touches the network
	if flags.FromDate != "" {
		if _, err := export.ParseFromDate(flags.FromDate); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --from-date %q, expected YYYY-MM (e.g. 2024-01)\n", flags.FromDate)
			os.Exit(ExitUsageError)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := &CLI{}

	if err := cli.initialize(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		os.Exit(ExitConfigError)
	}
	defer cli.logManager.Close()

	if err := cli.connect(ctx); err != nil {
		cli.logger.Error("startup checks failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConnectionErr)
	}
	defer cli.store.Close()

	summary, err := cli.run(ctx)
	if err != nil {
		var apiErr *binance.APIError
		switch {
		case errors.Is(err, context.Canceled):
			fmt.Fprintln(os.Stderr, "Interrupted")
			os.Exit(ExitInterrupt)
		case errors.Is(err, export.ErrInvalidDateFormat):
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitUsageError)
		case errors.As(err, &apiErr):
			fmt.Fprintf(os.Stderr, "Error: provider request failed: %v\n", err)
			os.Exit(ExitConnectionErr)
		default:
			fmt.Fprintf(os.Stderr, "Error: export failed: %v\n", err)
			os.Exit(ExitDataError)
		}
	}

	printSummary(summary)
}

// initialize loads the configuration and sets up logging
func (cli *CLI) initialize(flags *Flags) error {
	configPath := flags.ConfigPath
	if configPath == "" {
		configPath = ConfigFile
	}

	cm := config.NewConfigManager(configPath, nil)
	cfg, err := cm.LoadConfig()
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg, flags)
	cli.config = cfg

	logManager, err := logger.NewLoggerManager(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	cli.logManager = logManager
	cli.logger = logManager.GetComponentLogger("main")

	cli.logger.Debug("configuration loaded",
		"config_path", configPath,
		"storage_type", cfg.Storage.Type,
		"from_date", cfg.Export.FromDate,
		"month_interval", cfg.Export.MonthInterval)

	return nil
}

// connect builds the storage backend and provider client and verifies both
// are reachable before the export starts.
func (cli *CLI) connect(ctx context.Context) error {
	store, err := cli.createStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return fmt.Errorf("failed to initialize storage schema: %w", err)
	}
	cli.store = store

	binanceCfg := cli.config.Binance
	timeout, _ := time.ParseDuration(binanceCfg.Timeout)
	recvWindow, _ := time.ParseDuration(binanceCfg.RecvWindow)

	cli.client = binance.NewClient(binanceCfg.APIKey, binanceCfg.APISecret,
		binance.WithBaseURL(binanceCfg.BaseURL),
		binance.WithRateLimit(float64(binanceCfg.RateLimit), 1),
		binance.WithTimeout(timeout),
		binance.WithRecvWindow(recvWindow),
		binance.WithLogger(cli.logManager.GetComponentLogger("binance").Logger),
	)

	if err := cli.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("provider unreachable: %w", err)
	}

	cli.runner = export.NewRunner(cli.client, cli.store, cli.exportConfig(),
		cli.logManager.GetComponentLogger("export").Logger)

	return nil
}

// exportConfig translates the validated app configuration into runner settings
func (cli *CLI) exportConfig() export.Config {
	exportCfg := export.DefaultConfig()
	exportCfg.MonthInterval = cli.config.Export.MonthInterval

	// Durations were validated during config load
	if d, err := time.ParseDuration(cli.config.Export.RequestDelay); err == nil {
		exportCfg.Fetcher.RequestDelay = d
	}
	if d, err := time.ParseDuration(cli.config.Export.PauseInterval); err == nil {
		exportCfg.Fetcher.PauseInterval = d
	}
	if d, err := time.ParseDuration(cli.config.Export.PollInterval); err == nil {
		exportCfg.Fetcher.PollInterval = d
	}

	return exportCfg
}

// createStorage creates the configured storage backend
func (cli *CLI) createStorage(ctx context.Context) (storage.LedgerStore, error) {
	storageCfg := cli.config.Storage

	switch storageCfg.Type {
	case "duckdb":
		return storage.NewDuckDBStore(storageCfg.DatabasePath,
			cli.logManager.GetComponentLogger("storage").Logger)
	case "postgres":
		return storage.NewPostgresStore(ctx, storageCfg.DatabaseURL,
			cli.logManager.GetComponentLogger("storage").Logger)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageCfg.Type)
	}
}

// run executes the export and returns its summary
func (cli *CLI) run(ctx context.Context) (*export.Summary, error) {
	ctx = logger.WithTraceID(ctx, uuid.NewString())

	var summary *export.Summary
	err := cli.logger.LogOperation(ctx, "export", func() error {
		var runErr error
		summary, runErr = cli.runner.Run(ctx, cli.config.Export.FromDate)
		return runErr
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// printSummary prints the per-table row counts for the finished export
func printSummary(summary *export.Summary) {
	fmt.Printf("✅ Export completed in %s (%d windows", summary.Duration.Round(time.Millisecond), summary.Windows)
	if summary.Recoveries > 0 {
		fmt.Printf(", %d rate-limit recoveries", summary.Recoveries)
	}
	fmt.Printf(")\n\n")

	fmt.Println("Stored rows:")
	fmt.Printf("  %-18s %d\n", "fiat_withdrawals", summary.Counts.FiatWithdrawals)
	fmt.Printf("  %-18s %d\n", "convert_trades", summary.Counts.ConvertTrades)
	fmt.Printf("  %-18s %d\n", "deposits", summary.Counts.Deposits)
	fmt.Printf("  %-18s %d\n", "total", summary.Counts.Total())
}

// applyFlagOverrides applies command line flags over the loaded configuration.
// Flags win over both the config file and environment variables.
func applyFlagOverrides(cfg *config.AppConfig, flags *Flags) {
	if flags.FromDate != "" {
		cfg.Export.FromDate = flags.FromDate
	}
	if flags.MonthInterval > 0 {
		cfg.Export.MonthInterval = flags.MonthInterval
	}
	if flags.RequestDelay != "" {
		cfg.Export.RequestDelay = flags.RequestDelay
	}
	if flags.StorageType != "" {
		cfg.Storage.Type = flags.StorageType
	}
	if flags.DatabasePath != "" {
		cfg.Storage.DatabasePath = flags.DatabasePath
	}
	if flags.DatabaseURL != "" {
		cfg.Storage.DatabaseURL = flags.DatabaseURL
	}
	if flags.LogLevel != "" {
		cfg.Logging.Level = flags.LogLevel
	}
	if flags.LogFormat != "" {
		cfg.Logging.Format = flags.LogFormat
	}
}

// parseFlags parses command line arguments
func parseFlags(args []string) (*Flags, error) {
	flags := &Flags{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--from-date", "-d":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--from-date requires a value")
			}
			flags.FromDate = args[i+1]
			i++
		case "--config", "-c":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--config requires a value")
			}
			flags.ConfigPath = args[i+1]
			i++
		case "--storage", "-s":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--storage requires a value")
			}
			storageType := args[i+1]
			if storageType != "duckdb" && storageType != "postgres" && storageType != "memory" {
				return nil, fmt.Errorf("invalid storage type, must be: duckdb, postgres, or memory")
			}
			flags.StorageType = storageType
			i++
		case "--db":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--db requires a value")
			}
			flags.DatabasePath = args[i+1]
			i++
		case "--db-url":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--db-url requires a value")
			}
			flags.DatabaseURL = args[i+1]
			i++
		case "--month-interval", "-m":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--month-interval requires a value")
			}
			interval, err := strconv.Atoi(args[i+1])
			if err != nil || interval < 1 {
				return nil, fmt.Errorf("invalid month interval, must be a positive integer")
			}
			flags.MonthInterval = interval
			i++
		case "--delay":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--delay requires a value")
			}
			delay, err := time.ParseDuration(args[i+1])
			if err != nil || delay < 0 {
				return nil, fmt.Errorf("invalid delay, must be a non-negative duration (e.g. 500ms)")
			}
			flags.RequestDelay = args[i+1]
			i++
		case "--log-level":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--log-level requires a value")
			}
			level := args[i+1]
			if level != "debug" && level != "info" && level != "warn" && level != "error" {
				return nil, fmt.Errorf("invalid log level, must be: debug, info, warn, or error")
			}
			flags.LogLevel = level
			i++
		case "--log-format":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--log-format requires a value")
			}
			format := args[i+1]
			if format != "json" && format != "text" {
				return nil, fmt.Errorf("invalid log format, must be: json or text")
			}
			flags.LogFormat = format
			i++
		case "--version", "-v":
			flags.Version = true
		case "--help", "-h":
			flags.Help = true
		default:
			return nil, fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	return flags, nil
}

// printUsage prints the main usage information
func printUsage() {
	fmt.Printf(`%s - Binance account history exporter v%s

Pulls the complete fiat withdrawal, convert trade, and deposit history of a
Binance account into a local database. Every run re-fetches the full history
and inserts or replaces rows by their provider identifiers, so repeated runs
never create duplicates.

USAGE:
    %s [options]

OPTIONS:
    --from-date, -d <month>   First month to export in YYYY-MM format
                              (default: January of the current year)

    --config, -c <path>       Config file path (default: %s)
    --storage, -s <type>      Storage backend: duckdb, postgres, memory
    --db <path>               DuckDB database file path
    --db-url <url>            PostgreSQL connection string
    --month-interval, -m <n>  Width of each fetch window in months (default: 1)
    --delay <duration>        Pause between provider calls (e.g. 500ms)
    --log-level <level>       Log level: debug, info, warn, error
    --log-format <format>     Log format: text, json

    --version, -v             Show version information
    --help, -h                Show this help message

EXAMPLES:
    # Export everything since January of the current year
    %s

    # Export everything since June 2022 into the default DuckDB file
    %s --from-date 2022-06

    # Export into PostgreSQL with wider fetch windows
    %s -d 2021-01 --storage postgres --db-url postgres://localhost/binance -m 3

CONFIGURATION:
    API credentials are read from the BINANCE_API_KEY and BINANCE_API_SECRET
    environment variables. Everything else can be provided via:
    - Config file: %s (JSON format)
    - Environment variables: BINANCE_EXPORT_* (e.g. BINANCE_EXPORT_FROM_DATE)
    - Command line flags (highest priority)

EXIT CODES:
    0   export completed
    1   usage error (e.g. malformed --from-date)
    2   configuration error
    3   provider unreachable or provider request failed
    4   malformed data or storage failure
`, AppName, Version, AppName, ConfigFile, AppName, AppName, AppName, ConfigFile)
}
