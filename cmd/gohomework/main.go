package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/renqiu/gohomework"
	"github.com/renqiu/gohomework/export"
	"github.com/renqiu/gohomework/store"
	"github.com/renqiu/gohomework/watch"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	dir := flag.String("dir", "", "Homework folder to watch (overrides config)")
	file := flag.String("file", "", "Process a single document and exit")
	search := flag.String("search", "", "Search stored answers and exit")
	xlsx := flag.Bool("xlsx", false, "Also write an XLSX answers workbook")
	flag.Parse()

	// Structured JSON logging. Logs go to stderr so the search mode can
	// print data on stdout.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := gohomework.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	// Override from environment variables.
	if v := os.Getenv("GOHOMEWORK_DIR"); v != "" {
		cfg.HomeworkDir = v
	}
	if v := os.Getenv("GOHOMEWORK_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("GOHOMEWORK_PROVIDER"); v != "" {
		cfg.Oracle.Provider = v
	}
	if v := os.Getenv("GOHOMEWORK_MODEL"); v != "" {
		cfg.Oracle.Model = v
	}
	if v := os.Getenv("GOHOMEWORK_BASE_URL"); v != "" {
		cfg.Oracle.BaseURL = v
	}
	if v := os.Getenv("GOHOMEWORK_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
	}

	// Fallback: check well-known provider env vars for the API key.
	if cfg.Oracle.APIKey == "" {
		switch cfg.Oracle.Provider {
		case "qwen":
			cfg.Oracle.APIKey = os.Getenv("DASHSCOPE_API_KEY")
		case "openai":
			cfg.Oracle.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			cfg.Oracle.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if *dir != "" {
		cfg.HomeworkDir = *dir
	}

	switch {
	case *search != "":
		os.Exit(runSearch(cfg, *search))
	case *file != "":
		os.Exit(runFile(cfg, *file, *xlsx))
	default:
		os.Exit(runWatch(cfg, *xlsx))
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-done
		slog.Info("shutting down...")
		cancel()
	}()
	return ctx, cancel
}

// runWatch is the default mode: watch the homework folder and process
// documents as they arrive. In-flight documents finish before exit.
func runWatch(cfg gohomework.Config, workbook bool) int {
	proc, err := gohomework.New(cfg)
	if err != nil {
		slog.Error("creating processor", "error", err)
		return 1
	}

	wcfg := watch.Config{
		HomeworkDir:   cfg.HomeworkDir,
		ProcessingDir: cfg.ProcessingPath(),
		ResultsDir:    cfg.ResultsPath(),
		Formats:       cfg.Formats,
		Workbook:      workbook,
	}
	if err := watch.Setup(wcfg); err != nil {
		slog.Error("creating folders", "error", err)
		return 1
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		slog.Error("opening store", "error", err)
		return 1
	}
	defer st.Close()

	watcher, err := watch.New(watch.NewHandler(proc, st, wcfg))
	if err != nil {
		slog.Error("creating watcher", "error", err)
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := watcher.Run(ctx); err != nil {
		slog.Error("watcher error", "error", err)
		return 1
	}
	slog.Info("watcher stopped")
	return 0
}

// runFile processes one document in place and writes its result files
// without moving the document itself.
func runFile(cfg gohomework.Config, path string, workbook bool) int {
	proc, err := gohomework.New(cfg)
	if err != nil {
		slog.Error("creating processor", "error", err)
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := proc.Process(ctx, path)
	if err != nil {
		slog.Error("processing document", "file", path, "error", err)
		return 1
	}

	resultsDir := cfg.ResultsPath()
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		slog.Error("creating results folder", "error", err)
		return 1
	}
	out, err := export.WriteJSON(resultsDir, path, res)
	if err != nil {
		slog.Error("writing result", "error", err)
		return 1
	}
	slog.Info("result written", "path", out, "success", res.Success)

	if workbook && res.Success {
		wb, err := export.WriteXLSX(resultsDir, path, res)
		if err != nil {
			slog.Error("writing workbook", "error", err)
			return 1
		}
		slog.Info("workbook written", "path", wb)
	}

	if !res.Success {
		return 1
	}
	return 0
}

// runSearch queries stored answers and prints hits to stdout, one JSON
// object per line.
func runSearch(cfg gohomework.Config, query string) int {
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		slog.Error("opening store", "error", err)
		return 1
	}
	defer st.Close()

	hits, err := st.SearchAnswers(context.Background(), query, 20)
	if err != nil {
		slog.Error("searching answers", "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	for _, hit := range hits {
		if err := enc.Encode(hit); err != nil {
			slog.Error("encoding hit", "error", err)
			return 1
		}
	}
	slog.Info("search complete", "query", query, "hits", len(hits))
	return 0
}
