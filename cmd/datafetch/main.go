package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"datafetch/internal/config"
	"datafetch/internal/fetch"
	"datafetch/internal/installer"
	"datafetch/internal/logging"
	"datafetch/internal/store"
	"datafetch/internal/ui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.New()

	fs := flag.NewFlagSet("datafetch", flag.ExitOnError)
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory receiving boolq/ and glove/ (default: current directory)")
	fs.StringVar(&cfg.DBPath, "db", "", "Path to SQLite ledger (default: OS cache dir: datafetch/datafetch.db)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent fetch workers (1 preserves manifest order)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request HTTP timeout (0 disables)")
	fs.BoolVar(&cfg.VerifyChecksums, "verify", cfg.VerifyChecksums, "Verify manifest SHA-256 digests when present")
	fs.StringVar(&cfg.PythonBin, "python", cfg.PythonBin, "Python interpreter used for the model install")
	fs.StringVar(&cfg.SpacyModel, "spacy-model", cfg.SpacyModel, "spaCy model package to install")
	fs.BoolVar(&cfg.SkipInstall, "skip-install", cfg.SkipInstall, "Skip the spaCy model install step")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logging.Init(logging.ParseLevel(cfg.LogLevel))
	logger := logging.Logger

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 2
	}
	if err := cfg.ResolveDataDir(); err != nil {
		logger.Error("resolve data dir", "error", err)
		return 2
	}
	if err := cfg.ResolveDBPath(); err != nil {
		logger.Error("resolve db path", "error", err)
		return 2
	}

	logging.LogRunStart(cfg.Summary())

	// Prerequisites are checked before any directory or network side effect.
	if err := fetch.CheckPrerequisites(cfg.PythonBin); err != nil {
		logger.Error("prerequisite check failed", "error", err)
		return 1
	}

	if err := os.MkdirAll(cfg.AbsDataDir, 0o755); err != nil {
		logger.Error("create data dir", "error", err)
		return 1
	}

	// One writer per data dir; a second concurrent run bails out instead of
	// racing on partial files.
	lock := flock.New(filepath.Join(cfg.AbsDataDir, ".datafetch.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		logger.Error("acquire data dir lock", "error", err)
		return 1
	}
	if !locked {
		logger.Error("data dir is locked by another run", "path", cfg.AbsDataDir)
		return 1
	}
	defer func() { _ = lock.Unlock() }()

	for _, dir := range fetch.Dirs() {
		if err := os.MkdirAll(filepath.Join(cfg.AbsDataDir, dir), 0o755); err != nil {
			logger.Error("create output dir", "dir", dir, "error", err)
			return 1
		}
	}

	// Ensure ledger directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.AbsDBPath), 0o755); err != nil {
		logger.Error("create db dir", "error", err)
		return 1
	}
	st, err := store.Open(cfg.AbsDBPath)
	if err != nil {
		logger.Error("open db", "error", err)
		return 1
	}
	defer st.Close()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := st.ResetInterrupted(shutdownCtx); err != nil {
		logger.Warn("reset interrupted rows", "error", err)
	}

	tasks := make([]fetch.Task, 0, len(fetch.Manifest()))
	for _, a := range fetch.Manifest() {
		dbid, err := st.RecordAsset(shutdownCtx, a.Name, a.URL, a.Dest)
		if err != nil {
			logger.Error("record asset", "asset", a.Name, "error", err)
			return 1
		}
		tasks = append(tasks, fetch.Task{Asset: a, DBID: dbid})
	}

	fetcher := fetch.NewFetcher(cfg.AbsDataDir, cfg.Timeout, cfg.VerifyChecksums)
	mgr := fetch.NewManager(fetcher, fetch.ManagerOptions{
		Workers: cfg.Workers,
		Hooks:   &storeHooks{st: st},
	})

	runErr := mgr.Run(shutdownCtx, tasks)
	fetched, skipped, failed := mgr.Stats()

	if runErr == nil && !cfg.SkipInstall {
		// The install step runs only after every download landed; its
		// failure fails the whole run.
		inst := installer.New(cfg.PythonBin, cfg.SpacyModel)
		runErr = inst.Install(shutdownCtx)
	}

	logging.LogRunDone(fetched, skipped, failed, runErr)
	if runErr != nil {
		// Items still queued after an abort were never attempted; name them
		// so the retry isn't a surprise.
		for _, it := range mgr.Snapshot("") {
			if it.State == fetch.StateQueued {
				logger.Warn("asset not attempted", "asset", it.Asset.Name)
			}
		}
	}
	printSummary(shutdownCtx, st)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("run interrupted")
		}
		return 1
	}
	return 0
}

// printSummary writes a human-readable table of the ledger state to stdout.
func printSummary(ctx context.Context, st *store.Store) {
	assets, err := st.ListAssets(ctx)
	if err != nil {
		logging.Logger.Warn("list assets for summary", "error", err)
		return
	}
	fmt.Printf("%-18s %-10s %10s  %-8s %s\n", "ASSET", "STATUS", "SIZE", "SHA256", "DEST")
	for _, a := range assets {
		fmt.Printf("%-18s %-10s %10s  %-8s %s\n",
			ui.TruncateWithEllipsis(a.Name, 18),
			a.Status,
			ui.Bytes(a.SizeBytes),
			ui.ShortID(a.SHA256),
			a.Dest)
	}
}

// storeHooks implements fetch.Hooks to persist updates.
type storeHooks struct{ st *store.Store }

// hookCtx bounds ledger writes so a wedged database cannot stall a worker.
func hookCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}

func (h *storeHooks) OnStateChange(dbID int64, state fetch.State, errMsg string) {
	ctx, cancel := hookCtx()
	defer cancel()
	var st string
	switch state {
	case fetch.StateQueued:
		st = "pending"
	case fetch.StateFetching:
		st = "fetching"
	case fetch.StateSkipped:
		st = "skipped"
	case fetch.StateCompleted:
		st = "completed"
	case fetch.StateFailed:
		st = "error"
	default:
		st = "pending"
	}
	if err := h.st.UpdateStatus(ctx, dbID, st, errMsg); err != nil {
		if !isExpectedError(err) {
			logging.Logger.Warn("db update status", "id", dbID, "error", err)
		}
	}
}

func (h *storeHooks) OnRemoteInfo(dbID int64, sizeBytes int64, etag string) {
	ctx, cancel := hookCtx()
	defer cancel()
	if err := h.st.UpdateRemoteInfo(ctx, dbID, sizeBytes, etag); err != nil {
		if !isExpectedError(err) {
			logging.Logger.Warn("db update remote info", "id", dbID, "error", err)
		}
	}
}

func (h *storeHooks) OnResult(dbID int64, sizeBytes int64, sha256 string) {
	ctx, cancel := hookCtx()
	defer cancel()
	if err := h.st.UpdateResult(ctx, dbID, sizeBytes, sha256); err != nil {
		if !isExpectedError(err) {
			logging.Logger.Warn("db update result", "id", dbID, "error", err)
		}
	}
}

// isExpectedError checks if an error is expected during shutdown or context cancellation
func isExpectedError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return errStr == "sql: database is closed" ||
		errStr == "context deadline exceeded" ||
		errStr == "context canceled"
}
