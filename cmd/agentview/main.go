// Package main provides the agentview CLI for browsing AI agent conversation logs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agentview/internal/claude"
	"agentview/internal/codex"
	"agentview/internal/config"
	"agentview/internal/format"
	"agentview/internal/message"
	"agentview/internal/store"
	"agentview/internal/tail"
	"agentview/internal/usage"
	"agentview/internal/view"
)

var version = "dev"

var (
	engineFlag string
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:     "agentview",
	Short:   "Browse, search, and analyze AI agent conversation logs",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&engineFlag, "engine", "",
		"Engine: 'codex' or 'claude' (env: AGENTVIEW_ENGINE, default: codex)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (default: ~/.config/agentview/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newWatchCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "agentview: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return &config.Config{}, nil
		}
	}
	return config.Load(path)
}

// engineName resolves the engine to use from flag, environment, and config.
func engineName(cfg *config.Config) string {
	if engineFlag != "" {
		return engineFlag
	}
	if env := os.Getenv("AGENTVIEW_ENGINE"); env != "" {
		return env
	}
	if cfg.Engine != "" {
		return cfg.Engine
	}
	return "codex"
}

func converterOptions(cfg *config.Config, logger *slog.Logger, showReasoning bool) codex.Options {
	return codex.Options{
		Logger:           logger,
		ShowRawReasoning: cfg.ShowRawReasoning || showReasoning,
		PreviewLimit:     cfg.PreviewLimit,
		Markers:          cfg.Markers(),
	}
}

func buildEngine(cfg *config.Config, logger *slog.Logger, showReasoning bool) (store.Engine, error) {
	switch engineName(cfg) {
	case "codex":
		return codex.NewEngine(converterOptions(cfg, logger, showReasoning)), nil
	case "claude":
		return claude.NewEngine(logger), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", engineName(cfg))
	}
}

// defaultSessionsDir returns the default sessions directory for an engine.
func defaultSessionsDir(cfg *config.Config, engine string) string {
	if dir := os.Getenv("AGENTVIEW_SESSIONS_DIR"); dir != "" {
		return dir
	}
	if cfg.SessionsDir != "" {
		return cfg.SessionsDir
	}

	home, _ := os.UserHomeDir()
	switch engine {
	case "claude":
		return filepath.Join(home, ".claude", "projects")
	default:
		return filepath.Join(home, ".codex", "sessions")
	}
}

func newListCmd() *cobra.Command {
	var (
		cwd          string
		all          bool
		afterStr     string
		beforeStr    string
		limit        int
		formatFlag   string
		noHeader     bool
		summaryWidth int
		sessionsDir  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List session metadata in reverse chronological order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all && cwd != "" {
				return errors.New("--cwd cannot be used with --all")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			engine, err := buildEngine(cfg, newLogger(), false)
			if err != nil {
				return err
			}
			if sessionsDir == "" {
				sessionsDir = defaultSessionsDir(cfg, engine.Name())
			}

			var after, before *time.Time
			if afterStr != "" {
				t, err := time.Parse(time.RFC3339, afterStr)
				if err != nil {
					return fmt.Errorf("invalid --after value: %w", err)
				}
				after = &t
			}
			if beforeStr != "" {
				t, err := time.Parse(time.RFC3339, beforeStr)
				if err != nil {
					return fmt.Errorf("invalid --before value: %w", err)
				}
				before = &t
			}

			opts := store.ListOptions{
				Root:       sessionsDir,
				After:      after,
				Before:     before,
				Limit:      limit,
				MaxSummary: summaryWidth,
			}

			if !all {
				if cwd != "" {
					opts.CWD = cwd
				} else {
					wd, err := os.Getwd()
					if err != nil {
						return fmt.Errorf("determine current directory: %w", err)
					}
					opts.CWD = wd
				}
				opts.ExactCWD = true
			} else if cwd != "" {
				opts.CWD = cwd
			}

			result, err := store.ListSessions(engine, opts)
			if err != nil {
				return err
			}

			errs := cmd.ErrOrStderr()
			for _, warn := range result.Warnings {
				fmt.Fprintf(errs, "warning: %v\n", warn) //nolint:errcheck
			}

			includeHeader := !noHeader
			return format.WriteSummaries(cmd.OutOrStdout(), result.Summaries, includeHeader, strings.ToLower(formatFlag))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cwd, "cwd", "", "filter sessions whose cwd equals the provided path")
	flags.BoolVar(&all, "all", false, "include sessions from all directories")
	flags.StringVar(&afterStr, "after", "", "include sessions starting on/after the given RFC3339 timestamp")
	flags.StringVar(&beforeStr, "before", "", "include sessions starting on/before the given RFC3339 timestamp")
	flags.IntVar(&limit, "limit", 0, "limit number of sessions returned (0 means no limit)")
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit header row for plain output")
	flags.IntVar(&summaryWidth, "summary-width", 160, "maximum characters included in the summary column")
	flags.StringVar(&sessionsDir, "sessions-dir", "", "override the sessions directory (default: engine-specific)")

	return cmd
}

func newViewCmd() *cobra.Command {
	var (
		roleArg       string
		all           bool
		raw           bool
		wrap          int
		maxMessages   int
		sessionsDir   string
		formatFlag    string
		forceColor    bool
		forceNoColor  bool
		showReasoning bool
	)

	cmd := &cobra.Command{
		Use:   "view <session-id-or-path>",
		Short: "Render a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if forceColor && forceNoColor {
				return errors.New("--color and --no-color cannot be used together")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			engine, err := buildEngine(cfg, newLogger(), showReasoning)
			if err != nil {
				return err
			}
			if sessionsDir == "" {
				sessionsDir = defaultSessionsDir(cfg, engine.Name())
			}

			path, err := resolveSessionPath(engine, args[0], sessionsDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			outFile, _ := out.(*os.File)
			return view.Run(view.Options{
				Engine:       engine,
				Path:         path,
				Format:       formatFlag,
				Wrap:         wrap,
				MaxMessages:  maxMessages,
				RoleArg:      roleArg,
				All:          all,
				ForceColor:   forceColor,
				ForceNoColor: forceNoColor,
				RawFile:      raw,
				Out:          out,
				OutFile:      outFile,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&roleArg, "role", "R", "", "comma-separated roles to include: user, assistant, thinking, system (default: all)")
	flags.BoolVar(&all, "all", false, "include bookkeeping messages and standalone tool results")
	flags.BoolVar(&raw, "raw", false, "output raw JSONL without formatting")
	flags.IntVar(&wrap, "wrap", 0, "wrap message body at the given column width")
	flags.IntVar(&maxMessages, "max", 0, "show only the most recent N messages (0 means no limit)")
	flags.StringVar(&sessionsDir, "sessions-dir", "", "override the sessions directory (default: engine-specific)")
	flags.StringVar(&formatFlag, "format", "text", "output format: text, chat, json, or jsonl")
	flags.BoolVar(&forceColor, "color", false, "force-enable ANSI colors even when stdout is not a TTY")
	flags.BoolVar(&forceNoColor, "no-color", false, "disable ANSI colors regardless of terminal detection")
	flags.BoolVar(&showReasoning, "show-reasoning", false, "surface realtime reasoning deltas as thinking messages")

	return cmd
}

type infoPayload struct {
	SessionID       string `json:"session_id"`
	JSONLPath       string `json:"jsonl_path"`
	StartedAt       string `json:"started_at"`
	CWD             string `json:"cwd"`
	Originator      string `json:"originator,omitempty"`
	CLIVersion      string `json:"cli_version,omitempty"`
	MessageCount    int    `json:"message_count"`
	DurationSeconds int    `json:"duration_seconds"`
	DurationDisplay string `json:"duration_display"`
	Summary         string `json:"summary"`
	TokenUsage      string `json:"token_usage,omitempty"`
}

func newInfoCmd() *cobra.Command {
	var (
		formatFlag  string
		summaryMode string
		sessionsDir string
	)

	cmd := &cobra.Command{
		Use:   "info <session-id-or-path>",
		Short: "Show session metadata and file details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			engine, err := buildEngine(cfg, newLogger(), false)
			if err != nil {
				return err
			}
			if sessionsDir == "" {
				sessionsDir = defaultSessionsDir(cfg, engine.Name())
			}

			path, err := resolveSessionPath(engine, args[0], sessionsDir)
			if err != nil {
				return err
			}

			meta, err := engine.ReadSessionMeta(path)
			if err != nil {
				return err
			}

			summary, count, lastTimestamp, err := engine.Summarize(path)
			if err != nil {
				return err
			}

			var msgs []*message.Message
			if err := engine.Messages(path, func(msg *message.Message) error {
				msgs = append(msgs, msg)
				return nil
			}); err != nil {
				return err
			}
			report := usage.Collect(msgs)

			if lastTimestamp.IsZero() || lastTimestamp.Before(meta.StartedAt) {
				lastTimestamp = meta.StartedAt
			}
			duration := durationSeconds(meta.StartedAt, lastTimestamp)

			summaryMode = strings.ToLower(summaryMode)
			switch summaryMode {
			case "", "clip", "full":
			default:
				return fmt.Errorf("invalid --summary value: %s", summaryMode)
			}

			summarySnippet := collapseWhitespace(summary)
			if summaryMode != "full" {
				summarySnippet = clipSummary(summarySnippet, 160)
			}

			payload := infoPayload{
				SessionID:       meta.ID,
				JSONLPath:       path,
				StartedAt:       meta.StartedAt.Format(time.RFC3339),
				CWD:             meta.CWD,
				Originator:      meta.Originator,
				CLIVersion:      meta.CLIVersion,
				MessageCount:    count,
				DurationSeconds: duration,
				DurationDisplay: formatDuration(duration),
				Summary:         summary,
			}
			if report.Turns > 0 {
				payload.TokenUsage = report.String()
			}

			switch strings.ToLower(formatFlag) {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			case "text":
				renderInfoText(cmd.OutOrStdout(), payload, summarySnippet)
				return nil
			default:
				return fmt.Errorf("unsupported format: %s", formatFlag)
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&formatFlag, "format", "text", "output format: text or json")
	flags.StringVar(&summaryMode, "summary", "clip", "summary display: clip or full")
	flags.StringVar(&sessionsDir, "sessions-dir", "", "override the sessions directory (default: engine-specific)")

	return cmd
}

// lineConverter turns one raw log line into at most one canonical message.
type lineConverter interface {
	ProcessLine(line []byte) *message.Message
}

func newWatchCmd() *cobra.Command {
	var (
		sessionsDir   string
		wrap          int
		all           bool
		forceColor    bool
		forceNoColor  bool
		showReasoning bool
	)

	cmd := &cobra.Command{
		Use:   "watch <session-id-or-path>",
		Short: "Follow a session log and print new messages as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if forceColor && forceNoColor {
				return errors.New("--color and --no-color cannot be used together")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger()
			engine, err := buildEngine(cfg, logger, showReasoning)
			if err != nil {
				return err
			}
			if sessionsDir == "" {
				sessionsDir = defaultSessionsDir(cfg, engine.Name())
			}

			path, err := resolveSessionPath(engine, args[0], sessionsDir)
			if err != nil {
				return err
			}

			var conv lineConverter
			switch engine.Name() {
			case "claude":
				conv = claude.NewConverter(logger)
			default:
				conv = codex.NewConverter(converterOptions(cfg, logger, showReasoning))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			useColor := forceColor
			if !forceColor && !forceNoColor {
				useColor = false
			}

			count := 0
			err = tail.Follow(ctx, path, func(line []byte) error {
				msg := conv.ProcessLine(line)
				if msg == nil {
					return nil
				}
				if !all && (msg.ResultOnly || msg.Role == message.RoleSystem) {
					return nil
				}
				if count > 0 {
					fmt.Fprintln(out)
				}
				count++
				fmt.Fprintln(out, renderWatchMessage(msg, wrap, useColor))
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&sessionsDir, "sessions-dir", "", "override the sessions directory (default: engine-specific)")
	flags.IntVar(&wrap, "wrap", 0, "wrap message body at the given column width")
	flags.BoolVar(&all, "all", false, "include bookkeeping messages and standalone tool results")
	flags.BoolVar(&forceColor, "color", false, "force-enable ANSI colors")
	flags.BoolVar(&forceNoColor, "no-color", false, "disable ANSI colors")
	flags.BoolVar(&showReasoning, "show-reasoning", false, "surface realtime reasoning deltas as thinking messages")

	return cmd
}

func renderWatchMessage(msg *message.Message, wrap int, useColor bool) string {
	rendered := format.RenderMessage(msg, wrap)
	if !useColor {
		return rendered
	}
	lines := strings.SplitN(rendered, "\n", 2)
	if len(lines) == 2 {
		return "\x1b[1m" + lines[0] + "\x1b[0m\n" + lines[1]
	}
	return rendered
}

func resolveSessionPath(engine store.Engine, arg, root string) (string, error) {
	if arg == "" {
		return "", errors.New("session identifier is empty")
	}

	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return arg, nil
	}

	candidate := filepath.Join(root, arg)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate, nil
	}

	return store.FindSessionPath(engine, root, arg)
}

func durationSeconds(start, end time.Time) int {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Seconds())
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "00:00:00"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func renderInfoText(out io.Writer, payload infoPayload, summarySnippet string) {
	const labelWidth = 14
	writeKV(out, labelWidth, "Session ID", payload.SessionID)
	writeKV(out, labelWidth, "Started At", payload.StartedAt)
	writeKV(out, labelWidth, "Duration", payload.DurationDisplay)
	writeKV(out, labelWidth, "CWD", payload.CWD)
	writeKV(out, labelWidth, "Originator", payload.Originator)
	writeKV(out, labelWidth, "CLI Version", payload.CLIVersion)
	writeKV(out, labelWidth, "Message Count", fmt.Sprintf("%d", payload.MessageCount))
	if payload.TokenUsage != "" {
		writeKV(out, labelWidth, "Token Usage", payload.TokenUsage)
	}
	writeKV(out, labelWidth, "JSONL Path", payload.JSONLPath)
	writeKV(out, labelWidth, "Summary", summarySnippet)
}

func writeKV(out io.Writer, width int, label string, value string) {
	fmt.Fprintf(out, "%-*s: %s\n", width, label, value) //nolint:errcheck
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(text)), " ")
}

func clipSummary(text string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen == 1 {
		return "…"
	}
	return string(runes[:maxLen-1]) + "…"
}
