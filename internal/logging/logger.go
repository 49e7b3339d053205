// Package logging provides categorized structured logging for taskpilot,
// backed by zap. Each subsystem logs through a named child logger so log
// output can be filtered per category.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names one logging subsystem.
type Category string

const (
	CategoryAgent     Category = "agent"
	CategoryProvider  Category = "provider"
	CategoryStore     Category = "store"
	CategoryTools     Category = "tools"
	CategoryEmbedding Category = "embedding"
	CategoryIngest    Category = "ingest"
	CategoryCLI       Category = "cli"
)

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Initialize installs the process-wide root logger. debug selects the
// development config with DebugLevel; otherwise production JSON output at
// InfoLevel. Safe to call more than once; later calls replace the root.
func Initialize(debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	root = logger
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// Get returns the sugared logger for a category, creating it on first use.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := root.Named(string(category)).Sugar()
	loggers[category] = l
	return l
}

// Sync flushes buffered log entries. Call at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// Convenience functions per category, info and debug level.

func Agent(format string, args ...any)          { Get(CategoryAgent).Infof(format, args...) }
func AgentDebug(format string, args ...any)     { Get(CategoryAgent).Debugf(format, args...) }
func AgentWarn(format string, args ...any)      { Get(CategoryAgent).Warnf(format, args...) }
func AgentError(format string, args ...any)     { Get(CategoryAgent).Errorf(format, args...) }
func Provider(format string, args ...any)       { Get(CategoryProvider).Infof(format, args...) }
func ProviderDebug(format string, args ...any)  { Get(CategoryProvider).Debugf(format, args...) }
func ProviderWarn(format string, args ...any)   { Get(CategoryProvider).Warnf(format, args...) }
func ProviderError(format string, args ...any)  { Get(CategoryProvider).Errorf(format, args...) }
func Store(format string, args ...any)          { Get(CategoryStore).Infof(format, args...) }
func StoreDebug(format string, args ...any)     { Get(CategoryStore).Debugf(format, args...) }
func StoreError(format string, args ...any)     { Get(CategoryStore).Errorf(format, args...) }
func Tools(format string, args ...any)          { Get(CategoryTools).Infof(format, args...) }
func ToolsDebug(format string, args ...any)     { Get(CategoryTools).Debugf(format, args...) }
func ToolsError(format string, args ...any)     { Get(CategoryTools).Errorf(format, args...) }
func Embedding(format string, args ...any)      { Get(CategoryEmbedding).Infof(format, args...) }
func EmbeddingDebug(format string, args ...any) { Get(CategoryEmbedding).Debugf(format, args...) }
func Ingest(format string, args ...any)         { Get(CategoryIngest).Infof(format, args...) }
func IngestDebug(format string, args ...any)    { Get(CategoryIngest).Debugf(format, args...) }
func IngestError(format string, args ...any)    { Get(CategoryIngest).Errorf(format, args...) }
func CLI(format string, args ...any)            { Get(CategoryCLI).Infof(format, args...) }
