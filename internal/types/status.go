package types

// Status is the row-level lifecycle status of a persisted resource.
// This is used to soft-delete and filter records, never to encode
// business state (see the per-domain status types for that).
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeleted  Status = "deleted"
)

// RunMode controls how a binary behaves at startup.
type RunMode string

const (
	RunModeServer RunMode = "server"
	RunModeLocal  RunMode = "local"
)

// LogLevel is the configured logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
