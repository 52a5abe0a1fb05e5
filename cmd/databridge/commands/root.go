package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/marshallshelly/databridge/cmd/databridge/output"
	"github.com/marshallshelly/databridge/pkg/client"
	"github.com/marshallshelly/databridge/pkg/config"
)

var (
	// Global flags
	apiURL     string
	configFile string
	timeout    time.Duration
	verbose    bool
	jsonOutput bool
	logFile    string

	// Resolved by loadSettings before any command runs
	cfg     *config.Config
	logger  = logrus.New()
	api     *client.Client
	logSink io.Closer
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "databridge",
	Short: "databridge - admin console for the products, students, employees and members API",
	Long: `databridge manages the records of a REST backend from the terminal.

Features:
  - Interactive editor with tables, forms, confirmations and notifications
  - Scriptable list/create/update/delete commands for every entity
  - Bulk delete and CSV/Excel upload for students
  - A reference backend (memory, SQLite or PostgreSQL) for local use`,
	Version:           "0.4.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

// Execute runs the root command
func Execute() {
	if err := execute(); err != nil {
		var shown *reportedError
		if !errors.As(err, &shown) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// execute runs the root command and closes the log file afterwards. Cobra
// skips post-run hooks when a command fails, so the file is closed here.
func execute() error {
	err := rootCmd.Execute()
	if logSink != nil {
		_ = logSink.Close()
		logSink = nil
	}
	return err
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (default from config, e.g. http://localhost:5071/api)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file")
}

// loadSettings resolves the configuration (defaults < file < env < flags),
// sets up logging and builds the API client.
func loadSettings(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("api-url") {
		loaded.APIURL = apiURL
	}
	if cmd.Flags().Changed("timeout") {
		loaded.Timeout = config.Duration(timeout)
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	// Keep stdout clean for machine-readable output.
	if jsonOutput {
		output.Out = os.Stderr
	}

	if err := setupLogger(cmd); err != nil {
		return err
	}

	api, err = client.New(cfg.APIURL,
		client.WithTimeout(cfg.Timeout.Std()),
		client.WithLogger(logger.WithField("component", "client")),
	)
	return err
}

// setupLogger sends logs to --log-file, to stderr, or nowhere while the
// interactive UI owns the terminal.
func setupLogger(cmd *cobra.Command) error {
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cmd.Name() == "serve" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(f)
		logSink = f
	case cmd.Name() == "tui":
		logger.SetOutput(io.Discard)
	default:
		logger.SetOutput(os.Stderr)
		if !verbose && cmd.Name() != "serve" {
			logger.SetLevel(logrus.WarnLevel)
		}
	}
	return nil
}

// reportedError marks a failure the user has already been told about.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}
