package vheap

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// pkgLogger is swappable via SetLogger; it defaults to a no-op logger so
// that embedders who never opt into logging pay nothing for it, the way
// the teacher's Arena never touches a logging package until a caller
// reaches for Metrics()/SafeArena.
var pkgLogger atomic.Pointer[zap.Logger]

func init() {
	pkgLogger.Store(zap.NewNop())
}

// SetLogger installs the *zap.Logger used for Dump-before-abort
// diagnostics (spec.md §7) and InvalidConfiguration warnings. Passing nil
// restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	pkgLogger.Store(l)
}

func logger() *zap.Logger {
	return pkgLogger.Load()
}

func zapKind(k Kind) zap.Field {
	return zap.String("kind", k.String())
}

func zapMsg(msg string) zap.Field {
	return zap.String("reason", msg)
}

// logWriter adapts the package logger into an io.Writer so Dump can write
// through it at Info level, one log line per text line.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	logger().Info(string(p))
	return len(p), nil
}
