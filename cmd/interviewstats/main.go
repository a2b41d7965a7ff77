package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/mockify/interviewstats/internal/config"
	"github.com/mockify/interviewstats/internal/inbox"
	"github.com/mockify/interviewstats/internal/server"
	"github.com/mockify/interviewstats/internal/store"
	"github.com/mockify/interviewstats/internal/wordbank"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "rebuild":
			runRebuild(os.Args[2:])
			return
		case "export":
			runExport(os.Args[2:])
			return
		case "import":
			runImport(os.Args[2:])
			return
		case "score":
			runScore(os.Args[2:])
			return
		case "prune":
			runPrune(os.Args[2:])
			return
		case "config":
			runConfig(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("interviewstats %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`interviewstats %s - analytics for recorded mock interviews

Stores interview transcripts in SQLite and serves score, latency,
category and keyword analytics over a local JSON API.

Usage:
  interviewstats [flags]              Start the server (default command)
  interviewstats serve [flags]        Start the server (explicit)
  interviewstats import FILE...       Append sessions from JSON files
  interviewstats rebuild [filters]    Rebuild the word bank
  interviewstats export [flags]       Export the word bank
  interviewstats score ID SCORE       Set a session's feedback score
  interviewstats prune [flags]        Delete sessions matching filters
  interviewstats config [flags]       Show or update saved settings
  interviewstats version              Show version information
  interviewstats help                 Show this help

Server flags:
  -host string              Host to bind to (default "127.0.0.1")
  -port int                 Port to listen on (default 8090)
  -inbox string             Directory to watch for session JSON files
  -half-life float          Recency weighting half-life in days (default 14)
  -matcher string           Keyword matcher: substring, token
  -rebuild-schedule string  Cron spec for scheduled word bank rebuilds
  -in-memory                Keep data in memory only

Rebuild flags:
  -start YYYY-MM-DD   Sessions on or after this date
  -end YYYY-MM-DD     Sessions on or before this date
  -company string     Sessions for this company
  -category string    Sessions in this category

Export flags:
  -format string      json or yaml (default "json")
  -o string           Output file (default stdout)

Prune flags:
  -company string     Sessions for this company
  -category string    Sessions in this category
  -before string      Sessions recorded before this date (YYYY-MM-DD)
  -unscored           Sessions without a feedback score
  -max-messages int   Sessions with at most N messages (default -1)
  -dry-run            Show what would be pruned without deleting
  -yes                Skip confirmation prompt

Environment variables:
  INTERVIEWSTATS_DATA_DIR          Data directory (database, config)
  INTERVIEWSTATS_INBOX_DIR         Inbox directory
  INTERVIEWSTATS_HALF_LIFE_DAYS    Recency half-life in days
  INTERVIEWSTATS_MATCHER           Keyword matcher
  INTERVIEWSTATS_REBUILD_SCHEDULE  Cron spec for word bank rebuilds

A .env file in the working directory is read at startup.
Data is stored in ~/.interviewstats/ by default.
`, version)
}

func runServe(args []string) {
	cfg := mustLoadConfig(args)
	kv, closeStore := mustOpenStore(cfg)
	defer closeStore()

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	repo := store.NewRepository(kv)
	cache := wordbank.NewCache()
	if snap, err := repo.WarmCache(ctx, cache); err != nil {
		log.Printf("warning: loading word bank: %v", err)
	} else {
		log.Printf("word bank: %d tokens", len(snap.Bank))
	}

	if cfg.InboxDir != "" {
		in := inbox.New(cfg.InboxDir, repo,
			inbox.WithOnIngest(func(ids []string) {
				log.Printf(
					"inbox: %d new session(s); word bank is stale until rebuilt",
					len(ids),
				)
			}),
		)
		if err := in.Start(ctx); err != nil {
			log.Printf("warning: inbox unavailable: %v", err)
		} else {
			defer in.Stop()
		}
	}

	if cfg.RebuildSchedule != "" {
		sched, err := startRebuildSchedule(
			ctx, cfg.RebuildSchedule, repo, cache, time.Now,
		)
		if err != nil {
			log.Fatalf("rebuild schedule: %v", err)
		}
		defer sched.Stop()
	}

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, port)
	}
	cfg.Port = port

	srv := server.New(cfg, repo, cache,
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
	)
	fmt.Printf("interviewstats %s listening at %s\n", version, srv.URL())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}

func mustLoadConfig(args []string) config.Config {
	fs := flag.NewFlagSet("interviewstats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: interviewstats [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if !cfg.InMemory {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			log.Fatalf("creating data dir: %v", err)
		}
	}
	return cfg
}

// openStore opens the configured KV backend and returns it with
// its close function.
func openStore(cfg config.Config) (store.KV, func(), error) {
	if cfg.InMemory {
		log.Println("using in-memory store; data will not persist")
		return store.NewMemory(), func() {}, nil
	}
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

func mustOpenStore(cfg config.Config) (store.KV, func()) {
	kv, closeFn, err := openStore(cfg)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	return kv, closeFn
}

// mustOpenRepo loads config without serve flags and opens the
// repository, for one-shot subcommands.
func mustOpenRepo() (*store.Repository, func()) {
	cfg, err := config.LoadMinimal()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	kv, closeFn := mustOpenStore(cfg)
	return store.NewRepository(kv), closeFn
}
