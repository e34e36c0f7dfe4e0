package cli

import (
	"crypto/rand"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewSessionID returns a unique, time-ordered id for one invocation.
// Format: "ses_" + ulid().
func NewSessionID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return "ses_" + ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// NewLogger returns a text logger on w. Only warnings and errors are shown
// unless debug is set.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
