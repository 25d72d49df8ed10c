package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// LexiconChanged is true when the default alignment target changed.
	LexiconChanged bool

	// WorkerChanged is true when a loop-tuning field (batch size, fetch
	// wait, idle sleep, process timeout) changed. MaxInFlight is excluded:
	// resizing the semaphore requires a restart.
	WorkerChanged bool
}

// Empty reports whether no hot-reloadable field changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.LexiconChanged && !d.WorkerChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Lexicon.Default != new.Lexicon.Default {
		d.LexiconChanged = true
	}
	if old.Worker.BatchSize != new.Worker.BatchSize ||
		old.Worker.FetchWait != new.Worker.FetchWait ||
		old.Worker.IdleSleep != new.Worker.IdleSleep ||
		old.Worker.ProcessTimeout != new.Worker.ProcessTimeout {
		d.WorkerChanged = true
	}

	return d
}
