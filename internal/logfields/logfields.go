package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID       = "run_id"
	KeyJobID       = "job_id"
	KeyJobStatus   = "job_status"
	KeyTarget      = "target"
	KeyCombination = "combination"
	KeyToggle      = "toggle"
	KeyStage       = "stage"
	KeyPolicy      = "policy"
	KeyWorker      = "worker"
	KeyArch        = "arch"
	KeyTag         = "tag"
	KeyDigest      = "digest"
	KeyDurationMS  = "duration_ms"
	KeyScheduleID  = "schedule_id"
	KeyPath        = "path"
	KeyURL         = "url"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func JobID(id string) slog.Attr        { return slog.String(KeyJobID, id) }
func JobStatus(s string) slog.Attr     { return slog.String(KeyJobStatus, s) }
func Target(t string) slog.Attr        { return slog.String(KeyTarget, t) }
func Combination(c string) slog.Attr   { return slog.String(KeyCombination, c) }
func Toggle(t string) slog.Attr        { return slog.String(KeyToggle, t) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Policy(p string) slog.Attr        { return slog.String(KeyPolicy, p) }
func Worker(w string) slog.Attr        { return slog.String(KeyWorker, w) }
func Arch(a string) slog.Attr          { return slog.String(KeyArch, a) }
func Tag(t string) slog.Attr           { return slog.String(KeyTag, t) }
func Digest(d string) slog.Attr        { return slog.String(KeyDigest, d) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func ScheduleID(id string) slog.Attr   { return slog.String(KeyScheduleID, id) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
