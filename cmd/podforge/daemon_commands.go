package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"podforge/internal/api"
	"podforge/internal/daemonrun"
	"podforge/internal/store"
)

const stopWait = 10 * time.Second

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the podforge daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			pid, err := daemonrun.ReadPID(ctx.configValue())
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("find daemon process: %w", err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				if errors.Is(err, os.ErrProcessDone) {
					fmt.Fprintln(stdout, "Daemon is not running")
					return nil
				}
				return fmt.Errorf("signal daemon (pid %d): %w", pid, err)
			}
			fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", pid)

			client := ctx.client()
			deadline := time.Now().Add(stopWait)
			for time.Now().Before(deadline) {
				probeCtx, cancel := context.WithTimeout(cmd.Context(), time.Second)
				err := client.Health(probeCtx)
				cancel()
				if err != nil {
					fmt.Fprintln(stdout, "Daemon stopped")
					return nil
				}
				time.Sleep(200 * time.Millisecond)
			}
			return fmt.Errorf("daemon (pid %d) still answering after %s", pid, stopWait)
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show daemon, provider, and queue status, or one task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showTask(cmd, ctx, args[0], jsonOutput)
			}
			stdout := cmd.OutOrStdout()
			status, err := ctx.client().Status(cmd.Context())
			if jsonOutput {
				if err != nil {
					return err
				}
				return writeJSON(cmd, status)
			}

			colorize := shouldColorize(stdout)
			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if err != nil {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusError, "Not reachable at "+ctx.daemonAddress(), colorize))
				return nil
			}
			fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, "Running at "+ctx.daemonAddress(), colorize))
			for _, line := range systemLines(status, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			if len(status.Dependencies) > 0 {
				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range dependencyLines(status.Dependencies, colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout)
			}

			for _, line := range renderSectionHeader("Task Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildTaskStatusRows(status.Tasks)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No tasks yet")
				return nil
			}
			fmt.Fprint(stdout, renderTable([]column{{Header: "Status"}, {Header: "Count", Align: alignRight}}, rows))
			fmt.Fprintln(stdout)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw status as JSON")
	return cmd
}

func systemLines(status *api.ServiceStatus, colorize bool) []string {
	provider := func(label string, configured bool, missing statusKind) string {
		if configured {
			return renderStatusLine(label, statusOK, "Configured", colorize)
		}
		return renderStatusLine(label, missing, "Not configured", colorize)
	}
	lines := []string{
		provider("Script (LLM)", status.LLMConfigured, statusWarn),
		provider("Speech (TTS)", status.TTSConfigured, statusWarn),
		provider("Cover images", status.ImageConfigured, statusInfo),
	}
	if status.WorkerRunning {
		lines = append(lines, renderStatusLine("Worker", statusOK, fmt.Sprintf("Running (%d queued, %d processed)", status.QueuePending, status.Processed), colorize))
	} else {
		lines = append(lines, renderStatusLine("Worker", statusWarn, "Stopped", colorize))
	}
	if status.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, status.LastError, colorize))
	}
	return lines
}

func dependencyLines(deps []api.Dependency, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	var missing []string
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func buildTaskStatusRows(counts map[string]int) [][]string {
	order := make(map[string]int)
	for i, status := range store.AllStatuses() {
		order[string(status)] = i
	}
	keys := make([]string, 0, len(counts))
	for key, count := range counts {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return order[keys[i]] < order[keys[j]] })
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{titleCase(key), strconv.Itoa(counts[key])})
	}
	return rows
}
