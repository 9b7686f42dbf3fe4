package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lupon1/Django-Project-Assistant/internal/config"
	"github.com/lupon1/Django-Project-Assistant/internal/scaffold"
	"github.com/lupon1/Django-Project-Assistant/internal/ui"
)

// Version information (can be set at build time)
var (
	version = "0.1.0"
)

// app holds what every command shares once flags are parsed.
var app struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	logFile *os.File
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "djassist",
	Short: "Scaffold Django projects with uv, templates and a dev server",
	Long: `djassist creates a ready-to-run Django project: a uv virtual environment,
the packages you pick, a core app wired into urls.py, an optional custom user
model, HTML templates from a collection, and migrations. When it is done it can
start the development server and open the browser.

Usage:
  djassist new        Create a project (interactive form or flags)
  djassist serve      Start the dev server of an existing project
  djassist versions   List Python versions known to uv
  djassist doctor     Check uv, Python and the template folders`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app.logFile != nil {
			app.logFile.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the config file (default: user config dir)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug details")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(packagesCmd)
	rootCmd.AddCommand(assetsCmd)
	rootCmd.AddCommand(doctorCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logPath, _ := cmd.Flags().GetString("log-file")
	cfgPath, _ := cmd.Flags().GetString("config")

	var out io.Writer = os.Stderr
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		app.logFile = f
		out = f
	}
	app.logger = newLogger(out, verbose)
	slog.SetDefault(app.logger)

	if cfgPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		app.logger.Warn("using default config", "path", cfgPath, "error", err)
	}
	app.cfg = cfg
	app.cfgPath = cfgPath
	app.logger.Debug("config loaded", "path", cfgPath)
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// componentLogger is the logger handed to the pipeline and the server.
// While the console owns the terminal, stderr logging would tear the
// screen, so it is silenced unless --log-file redirects it.
func componentLogger(tui bool) *slog.Logger {
	if tui && app.logFile == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return app.logger
}

func saveConfig() {
	if err := config.Save(app.cfgPath, app.cfg); err != nil {
		ui.PrintWarning(fmt.Sprintf("Could not save settings: %v", err))
		app.logger.Warn("config save failed", "path", app.cfgPath, "error", err)
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if scaffold.IsValidation(err) {
		return 2
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(exitCode(err))
	}
}
