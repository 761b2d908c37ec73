package logging

import (
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

var (
	// Logger is the global structured logger instance
	Logger *slog.Logger
)

// Init initializes the global structured logger
func Init(level slog.Level) {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Format time as ISO8601
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "info", "INFO":
		return slog.LevelInfo
	case "warn", "WARN":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RedactURL removes secrets from URL logs while retaining debugging value.
// It strips userinfo and masks query parameter values.
func RedactURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed == nil {
		return rawURL
	}

	parsed.User = nil

	if parsed.RawQuery != "" {
		query := parsed.Query()
		for key := range query {
			query.Set(key, "***")
		}
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

// Helper functions for common logging patterns

// LogPrereqCheck logs the result of a prerequisite executable probe
func LogPrereqCheck(name, path string, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("prerequisite missing",
			"event", "prereq_missing",
			"tool", name,
			"error", err)
	} else {
		Logger.Debug("prerequisite found",
			"event", "prereq_found",
			"tool", name,
			"path", path)
	}
}

// LogFetchStart logs the start of an asset fetch
func LogFetchStart(fetchID, asset, url string) {
	if Logger == nil {
		return
	}
	Logger.Info("fetch started",
		"event", "fetch_start",
		"fetch_id", fetchID,
		"asset", asset,
		"url", RedactURL(url))
}

// LogFetchSkipped logs an asset skipped because its destination already exists
func LogFetchSkipped(fetchID, asset, dest string, size int64) {
	if Logger == nil {
		return
	}
	Logger.Info("destination exists, skipping",
		"event", "fetch_skipped",
		"fetch_id", fetchID,
		"asset", asset,
		"dest", dest,
		"size_bytes", size)
}

// LogFetchComplete logs successful fetch completion
func LogFetchComplete(fetchID, asset, dest string, size int64, sha256 string) {
	if Logger == nil {
		return
	}
	Logger.Info("fetch complete",
		"event", "fetch_complete",
		"fetch_id", fetchID,
		"asset", asset,
		"dest", dest,
		"size_bytes", size,
		"sha256", sha256)
}

// LogFetchError logs fetch failures
func LogFetchError(fetchID, asset, msg string, err error) {
	if Logger == nil {
		return
	}
	Logger.Error(msg,
		"event", "fetch_error",
		"fetch_id", fetchID,
		"asset", asset,
		"error", err)
}

// LogRemoteInfo logs the result of the pre-download HEAD probe
func LogRemoteInfo(fetchID, asset string, size int64, etag string) {
	if Logger == nil {
		return
	}
	Logger.Debug("remote info",
		"event", "remote_info",
		"fetch_id", fetchID,
		"asset", asset,
		"size_bytes", size,
		"etag", etag)
}

// LogExtract logs archive extraction of a downloaded asset
func LogExtract(asset, archive, destDir string, members int, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("extraction failed",
			"event", "extract_error",
			"asset", asset,
			"archive", archive,
			"error", err)
	} else {
		Logger.Info("archive extracted",
			"event", "extract_done",
			"asset", asset,
			"archive", archive,
			"dest_dir", destDir,
			"members", members)
	}
}

// LogInstallStart logs the start of the language model install step
func LogInstallStart(python, model string) {
	if Logger == nil {
		return
	}
	Logger.Info("model install started",
		"event", "install_start",
		"python", python,
		"model", model)
}

// LogInstallDone logs the result of the language model install step
func LogInstallDone(model string, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("model install failed",
			"event", "install_error",
			"model", model,
			"error", err)
	} else {
		Logger.Info("model install complete",
			"event", "install_done",
			"model", model)
	}
}

// LogDBOperation logs database operations
func LogDBOperation(operation string, id int64, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("database operation failed",
			"event", "db_operation_error",
			"operation", operation,
			"id", id,
			"error", err)
	} else {
		Logger.Info("database operation",
			"event", "db_operation",
			"operation", operation,
			"id", id)
	}
}

// LogDBCreate logs asset ledger record creation
func LogDBCreate(id int64, name, url, dest, status string) {
	if Logger == nil {
		return
	}
	Logger.Info("ledger record created",
		"event", "db_create",
		"id", id,
		"name", name,
		"url", RedactURL(url),
		"dest", dest,
		"status", status)
}

// LogDBUpdate logs asset ledger updates
func LogDBUpdate(operation string, id int64, fields map[string]any) {
	if Logger == nil {
		return
	}
	attrs := []any{
		"event", "db_update",
		"operation", operation,
		"id", id,
	}
	for k, v := range fields {
		if strings.EqualFold(k, "url") {
			if urlValue, ok := v.(string); ok {
				v = RedactURL(urlValue)
			}
		}
		attrs = append(attrs, k, v)
	}
	Logger.Info("ledger updated", attrs...)
}

// LogRunStart logs run startup with the resolved configuration
func LogRunStart(config map[string]any) {
	if Logger == nil {
		return
	}
	attrs := []any{
		"event", "run_start",
	}
	for k, v := range config {
		attrs = append(attrs, k, v)
	}
	Logger.Info("run started", attrs...)
}

// LogRunDone logs the terminal state of a run
func LogRunDone(fetched, skipped, failed int, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("run failed",
			"event", "run_error",
			"fetched", fetched,
			"skipped", skipped,
			"failed", failed,
			"error", err)
	} else {
		Logger.Info("run complete",
			"event", "run_done",
			"fetched", fetched,
			"skipped", skipped,
			"failed", failed)
	}
}
