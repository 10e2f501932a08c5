package catalogue

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"time"
)

// DefaultWatchInterval is the polling period of [Watch].
const DefaultWatchInterval = 5 * time.Second

// Watch polls the file at path and calls onChange whenever its content hash
// changes. It blocks until ctx is done. Files that fail to parse are logged
// and do not trigger onChange, so a broken edit keeps the last good catalogue.
func Watch(ctx context.Context, path string, interval time.Duration, onChange func()) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	w := fileWatch{path: path}
	w.lastHash, w.lastMod, _ = w.snapshot()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.changed() {
				slog.Info("catalogue: file changed", "path", path)
				onChange()
			}
		}
	}
}

type fileWatch struct {
	path     string
	lastHash [sha256.Size]byte
	lastMod  time.Time
}

func (w *fileWatch) changed() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("catalogue: cannot stat file", "path", w.path, "err", err)
		return false
	}
	if info.ModTime().Equal(w.lastMod) {
		return false
	}

	hash, mod, err := w.snapshot()
	w.lastMod = mod
	if err != nil {
		slog.Warn("catalogue: ignoring unreadable file", "path", w.path, "err", err)
		return false
	}
	if hash == w.lastHash {
		return false
	}
	w.lastHash = hash
	return true
}

// snapshot reads the file, checks that it parses and returns its hash and
// modification time.
func (w *fileWatch) snapshot() ([sha256.Size]byte, time.Time, error) {
	var zero [sha256.Size]byte
	info, err := os.Stat(w.path)
	if err != nil {
		return zero, time.Time{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return zero, time.Time{}, err
	}
	if _, err := Parse(data); err != nil {
		return zero, info.ModTime(), err
	}
	return sha256.Sum256(data), info.ModTime(), nil
}
