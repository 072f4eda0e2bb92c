package logger

import (
	"context"
	"log/slog"
	"runtime"
)

// ciVariables maps CI environment variables onto the log attributes that carry them.
var ciVariables = []struct {
	env  string
	attr string
}{
	{"GITHUB_RUN_ID", "ci_run_id"},
	{"GITHUB_SHA", "ci_commit"},
	{"GITHUB_JOB", "ci_job"},
	{"CI_PIPELINE_ID", "ci_run_id"},
	{"CI_COMMIT_SHA", "ci_commit"},
	{"CI_JOB_NAME", "ci_job"},
}

// DetectCI reports whether getenv describes a CI environment.
func DetectCI(getenv func(string) string) bool {
	return getenv("CI") != "" || getenv("GITHUB_ACTIONS") != "" || getenv("GITLAB_CI") != ""
}

// CIMetadata collects the CI run identifiers found through getenv.
func CIMetadata(getenv func(string) string) []slog.Attr {
	var attrs []slog.Attr
	seen := make(map[string]bool)
	for _, v := range ciVariables {
		if seen[v.attr] {
			continue
		}
		if value := getenv(v.env); value != "" {
			attrs = append(attrs, slog.String(v.attr, value))
			seen[v.attr] = true
		}
	}
	return attrs
}

// CIHandler is a slog.Handler that stamps every record with CI run metadata
// and the source location of the log call, so a failing CLI run in a pipeline
// can be traced back to the job and the line that logged.
type CIHandler struct {
	handler  slog.Handler
	metadata []slog.Attr
}

// NewCIHandler wraps h.
func NewCIHandler(h slog.Handler, metadata []slog.Attr) *CIHandler {
	return &CIHandler{handler: h, metadata: metadata}
}

// Enabled implements the slog.Handler interface.
func (h *CIHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs implements the slog.Handler interface.
func (h *CIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CIHandler{handler: h.handler.WithAttrs(attrs), metadata: h.metadata}
}

// WithGroup implements the slog.Handler interface.
func (h *CIHandler) WithGroup(name string) slog.Handler {
	return &CIHandler{handler: h.handler.WithGroup(name), metadata: h.metadata}
}

// Handle implements the slog.Handler interface.
func (h *CIHandler) Handle(ctx context.Context, record slog.Record) error {
	enhanced := record.Clone()

	if record.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{record.PC})
		frame, _ := frames.Next()
		enhanced.AddAttrs(
			slog.String("source_file", frame.File),
			slog.Int("source_line", frame.Line),
			slog.String("source_func", frame.Function),
		)
	}
	enhanced.AddAttrs(h.metadata...)

	return h.handler.Handle(ctx, enhanced)
}
