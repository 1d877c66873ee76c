// Package main is the gapscout CLI entry point.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gapscout/gapscout/internal/anonymize"
	"github.com/gapscout/gapscout/internal/cli"
	"github.com/gapscout/gapscout/internal/config"
	"github.com/gapscout/gapscout/internal/embedding"
	"github.com/gapscout/gapscout/internal/gaps"
	"github.com/gapscout/gapscout/internal/ingest"
	"github.com/gapscout/gapscout/internal/keyword"
	"github.com/gapscout/gapscout/internal/matcher"
	"github.com/gapscout/gapscout/internal/models"
	"github.com/gapscout/gapscout/internal/pipeline"
	"github.com/gapscout/gapscout/internal/server"
	"github.com/gapscout/gapscout/internal/storage"
	"github.com/gapscout/gapscout/internal/watcher"
	"github.com/gapscout/gapscout/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/gapscout/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "analyze":
		runAnalyze()
	case "match":
		runMatch()
	case "anonymize":
		runAnonymize()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("gapscout version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds the initialized pipeline parts shared by commands.
type Components struct {
	Embedder embedding.Embedder
	Store    *storage.SQLiteEmbeddingStore
	Matcher  *matcher.Matcher
	Analyzer *gaps.Analyzer
	Keyword  *keyword.ArticleIndex
}

// Close releases everything that holds resources.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
}

// initializeComponents builds the embedder, matcher, analyzer, and keyword
// index from config. Without an API key the deterministic mock embedder is
// used so offline runs and tests still work end to end.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}

	var embedder embedding.Embedder
	if cfg.Embedding.Provider == "mock" || cfg.Embedding.APIKey() == "" {
		if cfg.Embedding.Provider != "mock" && logger != nil {
			logger.Warn("no API key found, using mock embedder",
				zap.String("api_key_env", cfg.Embedding.APIKeyEnv))
		}
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		openaiEmbedder, err := embedding.NewOpenAIEmbedder(
			cfg.Embedding.APIKey(),
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
			embedding.WithCache(cfg.Embedding.CacheSize),
			embedding.WithBatchSize(cfg.Embedding.BatchSize),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		embedder = openaiEmbedder
	}

	if cfg.Storage.EmbeddingCachePath != "" {
		store, err := storage.NewSQLiteEmbeddingStore(cfg.Storage.EmbeddingCachePath)
		if err != nil {
			if logger != nil {
				logger.Warn("embedding cache unavailable, continuing without it", zap.Error(err))
			}
		} else {
			c.Store = store
			embedder = embedding.NewPersistentEmbedder(embedder, store, cfg.Embedding.Model)
		}
	}
	c.Embedder = embedder

	matcherOpts := []matcher.Option{}
	if logger != nil {
		matcherOpts = append(matcherOpts, matcher.WithLogger(logger))
	}
	c.Matcher = matcher.New(embedder, matcher.Config{
		SimilarityThreshold: cfg.Matching.SimilarityThreshold,
		ArticleTextBudget:   cfg.Matching.ArticleTextBudget,
		BatchSize:           cfg.Embedding.BatchSize,
	}, matcherOpts...)

	analyzerOpts := []gaps.Option{}
	if logger != nil {
		analyzerOpts = append(analyzerOpts, gaps.WithLogger(logger))
	}
	c.Analyzer = gaps.NewAnalyzer(cfg.Matching.SimilarityThreshold, analyzerOpts...)

	kw, err := keyword.NewArticleIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.Keyword = kw

	return c, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var corpus []models.Article
	if cfg.Ingest.ArticlesPath != "" {
		corpus, err = ingest.LoadArticles(cfg.Ingest.ArticlesPath)
		if err != nil {
			logger.Fatal("Failed to load article corpus", zap.Error(err))
		}
		ctx := context.Background()
		warm, loadErr := components.Matcher.LoadIndex(cfg.Storage.VectorIndexPath, corpus)
		if loadErr != nil {
			logger.Warn("stored article index unusable, re-embedding", zap.Error(loadErr))
		}
		if !warm {
			if err := components.Matcher.IndexArticles(ctx, corpus); err != nil {
				logger.Fatal("Failed to index articles", zap.Error(err))
			}
			if err := components.Matcher.SaveIndex(cfg.Storage.VectorIndexPath); err != nil {
				logger.Warn("failed to persist article index", zap.Error(err))
			}
		}
		if err := components.Keyword.IndexArticles(ctx, corpus); err != nil {
			logger.Warn("keyword indexing failed", zap.Error(err))
		}
		logger.Info("article corpus loaded",
			zap.Int("articles", len(corpus)), zap.Bool("warm_start", warm))
	} else {
		logger.Warn("no articles_path configured; index via POST /api/v1/reindex after loading")
	}

	srv := server.NewServer(components.Matcher, components.Analyzer, components.Keyword, corpus, cfg, logger)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled && (cfg.Ingest.TranscriptDir != "" || cfg.Ingest.EmailDir != "") {
		runnerOpts := []pipeline.Option{pipeline.WithLogger(logger)}
		var roots []string
		if cfg.Ingest.TranscriptDir != "" {
			roots = append(roots, cfg.Ingest.TranscriptDir)
		}
		if cfg.Ingest.EmailDir != "" {
			roots = append(roots, cfg.Ingest.EmailDir)
		}
		watchOpts := []watcher.Option{
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS) * time.Millisecond),
		}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.New(roots, cfg.Watch.Extensions, cfg.Watch.RecursiveOrDefault(), func() {
			runner := pipeline.NewRunner(components.Matcher, components.Analyzer, runnerOpts...)
			result, runErr := runner.RunFromDirs(context.Background(), corpus, cfg.Ingest.TranscriptDir, cfg.Ingest.EmailDir)
			if runErr != nil {
				logger.Warn("watch pipeline run failed", zap.Error(runErr))
				return
			}
			srv.SetLatestResult(result)
		}, watchOpts...)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		logger.Info("watch mode enabled", zap.Strings("roots", roots))
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	articlesPath := fs.String("articles", "", "article corpus JSON (overrides config)")
	transcriptDir := fs.String("transcripts", "", "transcript drop directory (overrides config)")
	emailDir := fs.String("emails", "", "email drop directory (overrides config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	outPath := fs.String("out", "", "write report to file instead of stdout")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *articlesPath != "" {
		cfg.Ingest.ArticlesPath = *articlesPath
	}
	if *transcriptDir != "" {
		cfg.Ingest.TranscriptDir = *transcriptDir
	}
	if *emailDir != "" {
		cfg.Ingest.EmailDir = *emailDir
	}
	if cfg.Ingest.ArticlesPath == "" {
		fmt.Fprintln(os.Stderr, "No article corpus: set --articles or ingest.articles_path")
		os.Exit(1)
	}
	if cfg.Ingest.TranscriptDir == "" && cfg.Ingest.EmailDir == "" {
		fmt.Fprintln(os.Stderr, "Nothing to analyze: set --transcripts and/or --emails")
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	corpus, err := ingest.LoadArticles(cfg.Ingest.ArticlesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load articles: %v\n", err)
		os.Exit(1)
	}

	runner := pipeline.NewRunner(components.Matcher, components.Analyzer, pipeline.WithLogger(logger))
	result, err := runner.RunFromDirs(context.Background(), corpus, cfg.Ingest.TranscriptDir, cfg.Ingest.EmailDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	if err := cli.WriteResult(out, result, cli.OutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write result: %v\n", err)
		os.Exit(1)
	}
}

func runMatch() {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	articlesPath := fs.String("articles", "", "article corpus JSON (overrides config)")
	topK := fs.Int("top", 3, "number of candidate articles to show")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: gapscout match [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *articlesPath != "" {
		cfg.Ingest.ArticlesPath = *articlesPath
	}
	if cfg.Ingest.ArticlesPath == "" {
		fmt.Fprintln(os.Stderr, "No article corpus: set --articles or ingest.articles_path")
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	corpus, err := ingest.LoadArticles(cfg.Ingest.ArticlesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load articles: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	if err := components.Matcher.IndexArticles(ctx, corpus); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to index articles: %v\n", err)
		os.Exit(1)
	}

	q := models.Question{
		Text:       question,
		SourceType: models.SourceEmail,
		SourceID:   "cli",
		Frequency:  1,
	}
	scores, err := components.Matcher.TopMatches(ctx, q, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Match failed: %v\n", err)
		os.Exit(1)
	}

	threshold := components.Matcher.Threshold()
	fmt.Printf("\nQuestion: %s\n", question)
	for i, s := range scores {
		marker := " "
		if s.Score >= threshold {
			marker = "*"
		}
		fmt.Printf("%s %d. [%.4f] %s (%s)\n", marker, i+1, s.Score, s.Article.Title, s.Article.ID)
	}
	if len(scores) == 0 || scores[0].Score < threshold {
		fmt.Printf("\nNo article clears the %.2f threshold: this is a knowledge gap.\n", threshold)
	}
}

func runAnonymize() {
	fs := flag.NewFlagSet("anonymize", flag.ExitOnError)
	showStats := fs.Bool("stats", false, "print substitution counts to stderr")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: gapscout anonymize [flags] [text]\n\nReads stdin when no text argument is given.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	text := strings.Join(fs.Args(), " ")
	if text == "" {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read stdin: %v\n", err)
			os.Exit(1)
		}
		text = string(data)
	}

	a := anonymize.New()
	fmt.Println(a.Anonymize(text))
	if *showStats {
		stats := a.Stats()
		for category, count := range stats {
			fmt.Fprintf(os.Stderr, "%s: %d\n", category, count)
		}
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	articlesPath := fs.String("articles", "", "article corpus JSON (overrides config)")
	limit := fs.Int("limit", 10, "number of results")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: gapscout search [flags] <query>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *articlesPath != "" {
		cfg.Ingest.ArticlesPath = *articlesPath
	}
	if cfg.Ingest.ArticlesPath == "" {
		fmt.Fprintln(os.Stderr, "No article corpus: set --articles or ingest.articles_path")
		os.Exit(1)
	}

	corpus, err := ingest.LoadArticles(cfg.Ingest.ArticlesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load articles: %v\n", err)
		os.Exit(1)
	}

	idx, err := keyword.NewArticleIndex("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build index: %v\n", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := idx.IndexArticles(ctx, corpus); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to index articles: %v\n", err)
		os.Exit(1)
	}
	results, err := idx.Search(ctx, query, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n%d results for %q\n", len(results), query)
	for i, r := range results {
		fmt.Printf("%d. [%.4f] %s (%s)\n", i+1, r.Score, r.Title, r.ID)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(strings.TrimRight(*serverURL, "/") + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Status failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode status: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(status)
}

func printUsage() {
	fmt.Println(`gapscout - knowledge gap detection for customer support content

Usage:
  gapscout server [flags]              Start the HTTP API server
  gapscout analyze [flags]             Run the pipeline over drop directories and print the report
  gapscout match [flags] <question>    Match one question against the article corpus
  gapscout anonymize [flags] [text]    Strip PII from text (stdin when no argument)
  gapscout search [flags] <query>      Keyword search over the article corpus
  gapscout status [flags]              Show a running server's status
  gapscout version                     Show version
  gapscout help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/gapscout/config.yaml)
  --debug            Enable debug logging

Analyze Flags:
  --config string       Config file path
  --articles string     Article corpus JSON (overrides config)
  --transcripts string  Transcript drop directory (overrides config)
  --emails string       Email drop directory (overrides config)
  --output string       Output format: text or json (default: text)
  --out string          Write the report to a file

Examples:
  gapscout analyze --articles articles.json --transcripts data/transcripts --emails data/emails
  gapscout match --articles articles.json how do I cancel my policy
  gapscout anonymize "Mr Smith lives at 12 Harbour Street"`)
}
