// Command darkmark scans web pages for dark patterns.
//
// Usage:
//
//	darkmark -url https://shop.example/deal            # scan and print blocks
//	darkmark -url https://shop.example/deal -wait      # scan, submit, await results
//	darkmark -results doc_123                          # fetch stored results
//	darkmark -mcp                                      # serve the scan tools over MCP stdio
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/darkmark/fetch"
	"github.com/hazyhaar/darkmark/scan"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: XDG config dir)")
	scanURL := flag.String("url", "", "page URL to scan")
	backend := flag.String("backend", "", "darkmarkd base URL (overrides config)")
	apiKey := flag.String("api-key", "", "backend API key (overrides config)")
	translateFlag := flag.Bool("translate", false, "translate Korean blocks before submission")
	forceBrowser := flag.Bool("force-browser", false, "always render through the headless browser")
	noBrowser := flag.Bool("no-browser", false, "never escalate to the headless browser")
	wait := flag.Bool("wait", false, "after submitting, poll until modeling finishes and print results")
	resultsID := flag.String("results", "", "fetch results for an existing document id")
	mcpMode := flag.Bool("mcp", false, "serve the scanner as MCP tools over stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := *configPath
	explicit := path != ""
	if path == "" {
		path = defaultConfigPath()
	}
	cfg, err := loadConfig(path, explicit)
	if err != nil {
		logger.Error("darkmark: config", "error", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.BackendURL = *backend
	}
	if *apiKey != "" {
		cfg.APIKey = *apiKey
	}
	if *translateFlag {
		cfg.Translate = true
	}
	if *forceBrowser {
		cfg.Fetch.ForceBrowser = true
	}
	if *noBrowser {
		cfg.Fetch.DisableBrowser = true
	}

	scanner := scan.New(scan.Config{
		Fetch: fetch.Options{
			UserAgent:      cfg.Fetch.UserAgent,
			Timeout:        cfg.Fetch.Timeout,
			ForceBrowser:   cfg.Fetch.ForceBrowser,
			DisableBrowser: cfg.Fetch.DisableBrowser,
			BrowserBin:     cfg.Fetch.BrowserBin,
			Logger:         logger,
		},
		Translate:  cfg.Translate,
		BackendURL: cfg.BackendURL,
		APIKey:     cfg.APIKey,
		Logger:     logger,
	})

	if err := run(ctx, logger, cfg, scanner, *scanURL, *resultsID, *wait, *mcpMode); err != nil {
		logger.Error("darkmark: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *Config, scanner *scan.Scanner,
	scanURL, resultsID string, wait, mcpMode bool) error {

	switch {
	case mcpMode:
		return runMCP(ctx, scanner)
	case resultsID != "":
		return printResults(ctx, scanner, resultsID)
	case scanURL != "":
		return runScan(ctx, logger, cfg, scanner, scanURL, wait)
	}

	fmt.Fprintln(os.Stderr, "usage: darkmark -url <url> [-wait] | -results <id> | -mcp")
	os.Exit(1)
	return nil
}

func runScan(ctx context.Context, logger *slog.Logger, cfg *Config, scanner *scan.Scanner,
	url string, wait bool) error {

	res, err := scanner.Scan(ctx, url)
	if err == scan.ErrNoData {
		fmt.Fprintln(os.Stderr, "nothing collected from", url)
		return nil
	}
	if err != nil {
		return err
	}

	if res.DocID == "" {
		// No backend (or the backend declined to store): print the blocks.
		return printJSON(res.Submission)
	}

	logger.Info("submitted", "id", res.DocID, "blocks", len(res.Blocks))
	if !wait {
		fmt.Println(res.DocID)
		return nil
	}

	poller := scan.NewPoller(scanner, cfg.PollEvery)
	for st := range poller.Poll(ctx, res.DocID) {
		logger.Info("modeling", "status", st.Status, "current", st.Current, "total", st.Total)
		if st.Terminal() {
			if st.Error != "" {
				return fmt.Errorf("modeling failed: %s", st.Error)
			}
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return printResults(ctx, scanner, res.DocID)
}

func printResults(ctx context.Context, scanner *scan.Scanner, docID string) error {
	sum, err := scanner.Summary(ctx, docID)
	if err != nil {
		return err
	}
	rows, err := scanner.Results(ctx, docID)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"summary": sum, "rows": rows})
}

func runMCP(ctx context.Context, scanner *scan.Scanner) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "darkmark",
		Version: "1.0.0",
	}, nil)
	scanner.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
