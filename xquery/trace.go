package xquery

import (
	"io"
	"log/slog"
	"os"
)

// Tracer follows the rules entered by the compiler.
type Tracer interface {
	Enter(string)
	Leave(string)
	Error(string, error)
}

type discardTracer struct{}

func (discardTracer) Enter(_ string)          {}
func (discardTracer) Leave(_ string)          {}
func (discardTracer) Error(_ string, _ error) {}

type logTracer struct {
	logger   *slog.Logger
	depth    int
	errcount int
}

func TraceStdout() Tracer {
	return TraceLogger(stdioLogger(os.Stdout))
}

func TraceStderr() Tracer {
	return TraceLogger(stdioLogger(os.Stderr))
}

func TraceLogger(logger *slog.Logger) Tracer {
	tracer := logTracer{
		logger: logger,
	}
	return &tracer
}

func stdioLogger(w io.Writer) *slog.Logger {
	opts := slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	return slog.New(slog.NewTextHandler(w, &opts))
}

func (t *logTracer) Enter(rule string) {
	t.depth++
	t.logger.Debug("start compile expr", "rule", rule, "depth", t.depth)
}

func (t *logTracer) Leave(rule string) {
	t.logger.Debug("done compile expr", "rule", rule, "depth", t.depth)
	t.depth--
}

func (t *logTracer) Error(rule string, err error) {
	t.errcount++
	t.logger.Error("compile failed", "rule", rule, "depth", t.depth, "err", err, "errors", t.errcount)
}
