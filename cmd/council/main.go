package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alienxp03/council/internal/config"
	"github.com/alienxp03/council/internal/core"
	"github.com/alienxp03/council/internal/debate"
	"github.com/alienxp03/council/internal/export"
	"github.com/alienxp03/council/internal/history"
	"github.com/alienxp03/council/internal/output"
	"github.com/alienxp03/council/internal/provider"
	"github.com/alienxp03/council/internal/storage"
	"github.com/alienxp03/council/web/handlers"
)

var (
	cfgPath   string
	dbPath    string
	verbose   bool
	appConfig *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "council",
	Short: "Ask a council of AI models and get a moderated answer",
	Long: `council fans a question out to multiple AI providers, runs a
two-round debate where each model rebuts the others, and has a
moderator synthesize one final answer.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		if cfgPath != "" {
			appConfig, err = config.LoadFrom(cfgPath)
		} else {
			appConfig, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.council/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(serveCmd)
}

func getStorage() (storage.Storage, error) {
	path := dbPath
	if path == "" {
		path = config.ExpandPath(appConfig.Storage.Path)
	}
	if path == "" {
		path = storage.DefaultDBPath()
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		return nil, err
	}
	return store, nil
}

func getOrchestrator() (*debate.Orchestrator, error) {
	registry, err := appConfig.CreateRegistry()
	if err != nil {
		return nil, err
	}
	members, err := appConfig.Members()
	if err != nil {
		return nil, err
	}
	moderator, err := appConfig.ModeratorMember()
	if err != nil {
		return nil, err
	}
	return debate.New(registry, members, moderator, appConfig.Request.Timeout())
}

// ============================================================================
// ASK COMMAND
// ============================================================================

var (
	outputFlag string
	noSaveFlag bool
	quietFlag  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the council a question",
	Long: `Run a full council debate on the given question.

Examples:
  council ask "Should we adopt GraphQL?"
  council ask "Best queue for event sourcing" --output json
  council ask "Explain CRDTs" --no-save`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		rec, err := runSession(cmd.Context(), question)
		if rec == nil {
			return err
		}

		if renderErr := output.Render(os.Stdout, rec, output.Mode(outputFlag)); renderErr != nil {
			return renderErr
		}
		return err
	},
}

func init() {
	askCmd.Flags().StringVarP(&outputFlag, "output", "o", "text", "Output format (text, json)")
	askCmd.Flags().BoolVar(&noSaveFlag, "no-save", false, "Skip history and session storage")
	askCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress progress output")
}

func runSession(ctx context.Context, question string) (*core.SessionRecord, error) {
	orch, err := getOrchestrator()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted.")
		cancel()
	}()

	var cb *debate.Callbacks
	if !quietFlag && outputFlag != "json" {
		cb = progressCallbacks()
	}

	rec, runErr := orch.RunDebateWithCallbacks(ctx, question, cb)
	if rec == nil {
		return nil, runErr
	}

	if !noSaveFlag {
		persistRecord(rec)
	}
	return rec, runErr
}

func progressCallbacks() *debate.Callbacks {
	return &debate.Callbacks{
		OnPhase: func(phase core.Phase) {
			switch phase {
			case core.PhaseRound1Running:
				fmt.Fprintln(os.Stderr, "[1/3] Collecting independent answers...")
			case core.PhaseRound2Running:
				fmt.Fprintln(os.Stderr, "[2/3] Running rebuttals...")
			case core.PhaseModerating:
				fmt.Fprintln(os.Stderr, "[3/3] Synthesizing final answer...")
			}
		},
		OnMemberResult: func(round int, res core.MemberResult) {
			if res.Succeeded() {
				fmt.Fprintf(os.Stderr, "  round %d: %s ok (%s)\n", round, res.Member, res.Completion.Latency.Round(time.Millisecond))
			} else {
				fmt.Fprintf(os.Stderr, "  round %d: %s FAILED (%s)\n", round, res.Member, res.Failure.Kind)
			}
		},
	}
}

// persistRecord saves the finalized record to the session store and the
// history log. Persistence failures are reported but never discard the
// in-memory result.
func persistRecord(rec *core.SessionRecord) {
	store, err := getStorage()
	if err != nil {
		slog.Warn("Session store unavailable", "error", err)
	} else {
		defer store.Close()
		if err := store.SaveSession(rec); err != nil {
			slog.Warn("Failed to save session", "session", rec.ID, "error", err)
		}
	}

	if appConfig.History.Path != "" {
		log := history.NewLog(config.ExpandPath(appConfig.History.Path))
		if err := log.Append(rec); err != nil {
			slog.Warn("Failed to append history", "session", rec.ID, "error", err)
		}
	}
}

// ============================================================================
// REPL COMMAND
// ============================================================================

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive question loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("council repl - type a question, or 'exit' to quit")

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}
			if question == "exit" || question == "quit" {
				break
			}

			rec, err := runSession(cmd.Context(), question)
			if rec == nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			if renderErr := output.Render(os.Stdout, rec, output.ModeText); renderErr != nil {
				fmt.Fprintln(os.Stderr, renderErr)
			}
		}
		return scanner.Err()
	},
}

// ============================================================================
// SESSIONS COMMAND
// ============================================================================

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Short:   "Manage stored sessions",
	Aliases: []string{"session"},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		summaries, err := store.ListSessions(50, 0)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No sessions found. Ask one with: council ask \"Your question\"")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tQUESTION\tPHASE\tMEMBERS\tCREATED")
		for _, s := range summaries {
			shortID := s.ID
			if len(shortID) > 8 {
				shortID = shortID[:8]
			}
			question := s.Question
			if len(question) > 40 {
				question = question[:37] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				shortID,
				question,
				s.Phase,
				s.MemberCount,
				s.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := findSessionByPrefix(store, args[0])
		if err != nil {
			return err
		}
		return output.Render(os.Stdout, rec, output.ModeText)
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := findSessionByPrefix(store, args[0])
		if err != nil {
			return err
		}
		if err := store.DeleteSession(rec.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted session: %s\n", rec.ID)
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func findSessionByPrefix(store storage.Storage, prefix string) (*core.SessionRecord, error) {
	summaries, err := store.ListSessions(100, 0)
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		if strings.HasPrefix(s.ID, prefix) {
			return store.GetSession(s.ID)
		}
	}
	return nil, fmt.Errorf("session not found: %s", prefix)
}

// ============================================================================
// EXPORT COMMAND
// ============================================================================

var exportCmd = &cobra.Command{
	Use:   "export [id] [format]",
	Short: "Export a session to file",
	Long: `Export a session to markdown, PDF, or JSON.

Examples:
  council export abc123 markdown
  council export abc123 pdf
  council export abc123 json -o session.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := findSessionByPrefix(store, args[0])
		if err != nil {
			return err
		}

		format := export.Format(strings.ToLower(args[1]))
		exporter, err := export.GetExporter(format)
		if err != nil {
			return err
		}

		outputPath, _ := cmd.Flags().GetString("output")
		if outputPath == "" {
			outputPath = export.GenerateFilename(rec, exporter.FileExtension())
		}

		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		defer file.Close()

		if err := exporter.Export(rec, file); err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}

		fmt.Printf("Exported to: %s\n", outputPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output file path")
}

// ============================================================================
// MODELS COMMAND
// ============================================================================

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available from each configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := appConfig.CreateRegistry()
		if err != nil {
			return err
		}

		names := registry.Names()
		sort.Strings(names)

		ctx, cancel := context.WithTimeout(cmd.Context(), appConfig.Request.Timeout())
		defer cancel()

		for _, name := range names {
			p, err := registry.Get(name)
			if err != nil {
				continue
			}

			fmt.Printf("\n%s\n", name)
			fmt.Println(strings.Repeat("─", 40))

			lister, ok := p.(provider.ModelLister)
			if !ok {
				fmt.Println("  (model listing not supported)")
				continue
			}

			models, err := lister.ListModels(ctx)
			if err != nil {
				fmt.Printf("  error: %v\n", err)
				continue
			}
			for _, m := range models {
				fmt.Printf("  %s\n", m)
			}
		}
		return nil
	},
}

// ============================================================================
// INIT-CONFIG COMMAND
// ============================================================================

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Create a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		path = config.ExpandPath(path)

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(config.Template), 0644); err != nil {
			return err
		}

		fmt.Printf("Created config at: %s\n", path)
		fmt.Println("Set the API key environment variables referenced in it, then run: council ask \"...\"")
		return nil
	},
}

// ============================================================================
// SERVE COMMAND
// ============================================================================

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("port") && appConfig.Server.Port != 0 {
			servePort = appConfig.Server.Port
		}

		store, err := getStorage()
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		registry, err := appConfig.CreateRegistry()
		if err != nil {
			return err
		}

		h := handlers.New(store, registry, appConfig)

		addr := fmt.Sprintf(":%d", servePort)
		server := &http.Server{
			Addr:    addr,
			Handler: h.Router(),
		}

		fmt.Printf("\nStarting council API server on http://localhost:%d\n\n", servePort)
		fmt.Println("Available endpoints:")
		fmt.Printf("  GET    http://localhost:%d/api/sessions      - List sessions\n", servePort)
		fmt.Printf("  POST   http://localhost:%d/api/sessions      - Run a debate\n", servePort)
		fmt.Printf("  GET    http://localhost:%d/api/sessions/:id  - Show a session\n", servePort)
		fmt.Printf("  GET    http://localhost:%d/api/providers     - List providers\n", servePort)
		fmt.Println("\nPress Ctrl+C to stop the server")

		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh
			fmt.Println("\nShutting down...")
			server.Close()
		}()

		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8184, "Server port")
}
