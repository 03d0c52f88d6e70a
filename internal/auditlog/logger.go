// Package auditlog sets up logging for the mirror: every record goes to the
// console and is appended to the audit log file.
package auditlog

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const fileTimeFormat = "2006-01-02 15:04:05"

type Options struct {
	Level slog.Level
	// Color forces colour on or off for the console. When nil, colour is used
	// only if the console is a terminal.
	Color *bool
}

// New returns a logger writing to both console and file.
func New(console io.Writer, file io.Writer, opts Options) *slog.Logger {
	color := false
	if opts.Color != nil {
		color = *opts.Color
	} else if f, ok := console.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}

	consoleHandler := tint.NewHandler(console, &tint.Options{
		Level:      opts.Level,
		TimeFormat: "15:04:05",
		NoColor:    !color,
	})

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: opts.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().Format(fileTimeFormat))
			}
			return a
		},
	})

	return slog.New(NewMultiHandler(consoleHandler, fileHandler))
}
