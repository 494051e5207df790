package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// LoggerNameKey is the attribute under which GetLogger records the logger name.
const LoggerNameKey = "logger"

const (
	ansiCodeReset     = "\033[0m"
	ansiCodeRed       = "\033[31m"
	ansiCodeGreen     = "\033[32m"
	ansiCodeYellow    = "\033[33m"
	ansiCodeCyan      = "\033[36m"
	ansiCodeGray      = "\033[90m"
	ansiCodeUnderline = "\033[4m"
)

//nolint:gochecknoglobals
var ansiCodeMap = map[slog.Level]string{
	slog.LevelDebug: ansiCodeCyan,
	slog.LevelInfo:  ansiCodeGreen,
	slog.LevelWarn:  ansiCodeYellow,
	slog.LevelError: ansiCodeRed,
}

// ConsoleHandler implements slog.Handler to format log records with ANSI colors
// and human-readable output suitable for development environments.
type ConsoleHandler struct {
	// Output is the destination for log output (typically os.Stdout or os.Stderr)
	Output io.Writer
	// Level is the minimum level for log records to be processed
	Level slog.Leveler
	// PkgLevels maps logger names (or dotted prefixes of them) to minimum log levels
	PkgLevels map[string]slog.Level

	attrs  []slog.Attr
	groups []string
	mu     *sync.Mutex
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)

	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)

		return true
	})

	if r.Level < h.minLevel(loggerName(attrs)) {
		return nil
	}

	var b strings.Builder

	b.WriteString(ansiCodeGray + r.Time.Format("15:04:05.000000") + ansiCodeReset)
	b.WriteString(" " + ansiCodeMap[r.Level] + "[" + r.Level.String() + "]" + ansiCodeReset)
	b.WriteString(" " + r.Message)

	var prefix string

	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	if len(attrs) > 0 {
		b.WriteString(" " + ansiCodeGray + "|" + ansiCodeReset)
		h.renderAttrs(&b, prefix, attrs)
	}

	if r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		fn := strings.Split(f.Function, string(os.PathSeparator))

		b.WriteString("\n-> " + ansiCodeGray + fn[len(fn)-1] + "()")
		b.WriteString(" in " + ansiCodeUnderline + f.File + ":" + strconv.Itoa(f.Line) + ansiCodeReset)
	}

	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}

	if _, err := fmt.Fprintln(h.Output, b.String()); err != nil {
		return fmt.Errorf("write log: %w", err)
	}

	return nil
}

// minLevel resolves the most specific PkgLevels entry for a dotted logger name,
// falling back to the "" entry and then the handler level.
func (h *ConsoleHandler) minLevel(name string) slog.Level {
	parts := strings.Split(name, ".")

	for i := len(parts); i > 0; i-- {
		if level, ok := h.PkgLevels[strings.Join(parts[:i], ".")]; ok {
			return level
		}
	}

	if level, ok := h.PkgLevels[""]; ok {
		return level
	}

	return h.Level.Level()
}

func loggerName(attrs []slog.Attr) string {
	for _, attr := range attrs {
		if attr.Key == LoggerNameKey {
			return attr.Value.String()
		}
	}

	return ""
}

func (h *ConsoleHandler) renderAttrs(b *strings.Builder, prefix string, attrs []slog.Attr) {
	for _, attr := range attrs {
		if attr.Value.Kind() == slog.KindGroup {
			h.renderAttrs(b, prefix+attr.Key+".", attr.Value.Group())

			continue
		}

		b.WriteString(" " + prefix + attr.Key)
		b.WriteString("=" + ansiCodeGray + attr.Value.String() + ansiCodeReset)
	}
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	mu := h.mu
	if mu == nil {
		mu = new(sync.Mutex)
	}

	return &ConsoleHandler{
		Output:    h.Output,
		Level:     h.Level,
		PkgLevels: h.PkgLevels,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
		mu:        mu,
	}
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	c := h.clone()
	c.attrs = append(c.attrs, attrs...)

	return c
}

// WithGroup implements slog.Handler.WithGroup.
func (h *ConsoleHandler) WithGroup(name string) Handler {
	c := h.clone()
	c.groups = append(c.groups, name)

	return c
}

// Enabled implements slog.Handler.Enabled. Package overrides may lower the level
// below the handler level, so the final decision is made in Handle.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := h.Level.Level()

	for _, l := range h.PkgLevels {
		minLevel = min(minLevel, l)
	}

	return level >= minLevel
}
