// Package main is the entry point for policydash. Without arguments it runs the
// Bubble Tea dashboard; subcommands expose import and query operations for scripts.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/j-veylop/policy-analytics-tui/internal/app"
	"github.com/j-veylop/policy-analytics-tui/internal/config"
	"github.com/j-veylop/policy-analytics-tui/internal/logger"
	"github.com/j-veylop/policy-analytics-tui/internal/services"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/tabs/dashboard"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/tabs/info"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/tabs/records"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/tabs/trend"
	"github.com/j-veylop/policy-analytics-tui/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "policydash",
		Short: "Insurance policy analytics dashboard",
		Long: `policydash aggregates weekly policy snapshots and derives loss, expense
and contribution ratios per group.

Run without arguments for the interactive dashboard. CSV files dropped into
DATA_DIR are imported automatically while it runs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTUI()
		},
	}

	root.AddCommand(
		newImportCmd(),
		newImportsCmd(),
		newAnalyzeCmd(),
		newQueryCmd(),
		newClearCmd(),
		newVersionCmd(),
	)
	return root
}

// runTUI contains the dashboard logic, separated for cleaner error handling.
func runTUI() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The alt-screen owns the terminal, so logs go to a file.
	logFile, err := logger.OpenFile(cfg.LogPath, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logFile.Close()

	svcManager, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	if err := svcManager.StartWatching(); err != nil {
		logger.Warn("Import directory is not watched", "dir", cfg.DataDir, "error", err)
	}

	model := app.NewModel(svcManager)
	state := model.GetState()
	model.SetTabs([]app.Tab{
		dashboard.New(state, svcManager, cfg.Thresholds),
		records.New(svcManager, cfg.PageSize),
		trend.New(svcManager, cfg.Thresholds),
		info.New(state, cfg),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-sigChan
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	logger.Info("Exiting", "version", version.GetVersion())
	return nil
}
