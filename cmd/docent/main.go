// Package main is the docent CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	iofs "io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/docent-ai/docent/internal/chat"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/embedding"
	"github.com/docent-ai/docent/internal/extract"
	"github.com/docent-ai/docent/internal/indexer"
	"github.com/docent-ai/docent/internal/llm"
	"github.com/docent-ai/docent/internal/models"
	"github.com/docent-ai/docent/internal/registry"
	"github.com/docent-ai/docent/internal/retriever"
	"github.com/docent-ai/docent/internal/server"
	"github.com/docent-ai/docent/internal/session"
	"github.com/docent-ai/docent/internal/vectorstore"
	"github.com/docent-ai/docent/internal/watcher"
	"github.com/docent-ai/docent/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docent/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used instead. Returns the config and the path actually loaded.
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
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("docent version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
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

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()
	if components.Chat == nil {
		logger.Fatal("Chat unavailable: set " + cfg.Gemini.APIKeyEnv + " to run the server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	components.Sessions.StartSweeper(ctx, 5*time.Minute)

	var watchSvc *watcher.Watcher
	if cfg.Uploads.WatchOrDefault() {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		idx := components.Indexer
		watchSvc = watcher.NewWatcher(
			cfg.Uploads.Dir,
			nil,
			func(path string) {
				if _, err := idx.IngestFile(context.Background(), path); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExisting()
	}

	// With the watcher active, saved uploads are picked up from disk; the
	// handlers must not ingest them a second time.
	var ingestor server.Ingestor = components.Indexer
	if watchSvc != nil {
		ingestor = &watchAwareIngestor{indexer: components.Indexer, watcher: watchSvc, uploadDir: cfg.Uploads.Dir}
	}

	srv := server.NewServer(
		components.Chat,
		ingestor,
		components.Extractor,
		components.Retriever,
		components.Sessions,
		components.Registry,
		cfg.Uploads.Dir,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// watchAwareIngestor ingests synchronously and suppresses the watcher's
// duplicate pickup of the freshly written upload.
type watchAwareIngestor struct {
	indexer   *indexer.Indexer
	watcher   *watcher.Watcher
	uploadDir string
}

func (w *watchAwareIngestor) IngestFile(ctx context.Context, path string) (int, error) {
	w.watcher.Suppress(path)
	return w.indexer.IngestFile(ctx, path)
}

func (w *watchAwareIngestor) IngestExtracted(ctx context.Context, units []models.TextUnit, filename string, sizeBytes int64) (int, error) {
	w.watcher.Suppress(filepath.Join(w.uploadDir, filename))
	return w.indexer.IngestExtracted(ctx, units, filename, sizeBytes)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docent ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		files, chunks := 0, 0
		walkErr := filepath.WalkDir(path, func(p string, d iofs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			n, ingestErr := components.Indexer.IngestFile(ctx, p)
			if ingestErr != nil {
				fmt.Printf("Skipped %s: %v\n", p, ingestErr)
				return nil
			}
			files++
			chunks += n
			return nil
		})
		if walkErr != nil {
			fmt.Printf("Ingesting directory failed: %v\n", walkErr)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d file(s), %d chunk(s) from %s\n", files, chunks, path)
		return
	}
	n, err := components.Indexer.IngestFile(ctx, path)
	if err != nil {
		fmt.Printf("Ingesting failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %s: %d chunk(s)\n", path, n)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8000", "server URL (empty = answer locally without the server)")
	sessionID := fs.String("session", "", "session id for follow-up questions")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docent ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: docent ask [flags] <question>")
		os.Exit(1)
	}

	if *serverURL != "" {
		resp, err := askViaHTTP(*serverURL, question, *sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(resp.Text)
		if !resp.Grounded {
			fmt.Fprintln(os.Stderr, "(answered without document context)")
		}
		fmt.Fprintf(os.Stderr, "session: %s\n", resp.SessionID)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	if components.Chat == nil {
		fmt.Fprintf(os.Stderr, "Chat unavailable: set %s\n", cfg.Gemini.APIKeyEnv)
		os.Exit(1)
	}

	answer, err := components.Chat.Answer(context.Background(), *sessionID, question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(answer.Text)
	if !answer.Grounded {
		fmt.Fprintln(os.Stderr, "(answered without document context)")
	}
}

func askViaHTTP(serverURL, question, sessionID string) (*models.MessageResponse, error) {
	body, err := json.Marshal(models.MessageRequest{Name: question, SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/message", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8000", "server URL (empty = inspect storage directly)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/health")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		var health models.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("status:           %s\n", health.Status)
		fmt.Printf("retriever_ready:  %t\n", health.RetrieverReady)
		fmt.Printf("active_sessions:  %d\n", health.ActiveSessions)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	points, err := components.Store.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count points failed: %v\n", err)
		os.Exit(1)
	}
	artifacts, err := components.Registry.CountArtifacts(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count artifacts failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("artifacts:  %d   # recorded uploads\n", artifacts)
	fmt.Printf("points:     %d   # vectors in the collection\n", points)
	fmt.Printf("collection: %s\n", cfg.Qdrant.Collection)
}

// Components holds initialized services.
type Components struct {
	Registry  *registry.Registry
	Embedder  embedding.Embedder
	Store     vectorstore.VectorStore
	Extractor *extract.Extractor
	Indexer   *indexer.Indexer
	Retriever *retriever.Retriever
	Sessions  *session.Store
	Chat      *chat.Service
}

func (c *Components) Close() {
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	reg, err := registry.NewRegistry(cfg.Registry.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}

	var embedder embedding.Embedder
	geminiEmbedder, err := embedding.NewGeminiEmbedder(embedding.GeminiEmbedderConfig{
		APIKeyEnv: cfg.Gemini.APIKeyEnv,
		Model:     cfg.Gemini.EmbedModel,
		Timeout:   time.Duration(cfg.Gemini.TimeoutSecs) * time.Second,
		CacheSize: 4096,
	})
	if err != nil {
		logger.Warn("hosted embedder unavailable, using mock embeddings", zap.Error(err))
		embedder = embedding.NewMockEmbedder(0)
	} else {
		embedder = geminiEmbedder
	}

	store := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
	})

	extractor := extract.NewExtractor(extract.NewTesseractOCR(""))
	splitter := indexer.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)

	idxOpts := []indexer.Option{indexer.WithRecorder(reg)}
	if debug {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	idx := indexer.NewIndexer(extractor, splitter, embedder, store, idxOpts...)

	retrOpts := []retriever.Option{}
	if debug {
		retrOpts = append(retrOpts, retriever.WithLogger(logger))
	}
	retr := retriever.NewRetriever(embedder, store, cfg.Retrieval.K, cfg.Retrieval.FetchK, cfg.Retrieval.Lambda, retrOpts...)

	sessions := session.NewStore(
		cfg.Session.MaxTurns,
		cfg.Session.MaxSessions,
		time.Duration(cfg.Session.TTLMins)*time.Minute,
		session.WithLogger(logger),
	)

	var chatSvc *chat.Service
	provider, err := llm.NewGeminiProvider(llm.GeminiConfig{
		APIKeyEnv:   cfg.Gemini.APIKeyEnv,
		Model:       cfg.Gemini.ChatModel,
		Temperature: cfg.Gemini.Temperature,
		Timeout:     time.Duration(cfg.Gemini.TimeoutSecs) * time.Second,
	})
	if err != nil {
		logger.Warn("hosted model unavailable, chat disabled", zap.Error(err))
	} else {
		chatSvc = chat.NewService(provider, retr, sessions, chat.WithLogger(logger))
	}

	return &Components{
		Registry:  reg,
		Embedder:  embedder,
		Store:     store,
		Extractor: extractor,
		Indexer:   idx,
		Retriever: retr,
		Sessions:  sessions,
		Chat:      chatSvc,
	}, nil
}

func printUsage() {
	fmt.Println(`docent - document question answering service

Usage:
  docent server [flags]            Start the HTTP server
  docent ingest [flags] <path>     Ingest a file or directory
  docent ask [flags] <question>    Ask a question about ingested documents
  docent status [flags]            Show service status
  docent version                   Show version
  docent help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/docent/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --config string    Config file path

Ask Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8000). Use --server "" to answer locally.
  --session string   Session id, for follow-up questions

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8000). Use --server "" for direct storage.

Examples:
  docent server
  docent ingest report.pdf
  docent ask "what does the report say about revenue?"
  docent ask --session 7f3a "and the year before?"
  docent status`)
}
