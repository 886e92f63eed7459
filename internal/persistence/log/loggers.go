package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"gadgetwars.ai/internal/sim/engine"
)

// JSONLZstdWriter appends JSON lines to date-stamped zstd files. Rounds are
// human-paced, so every entry is flushed immediately.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := time.Now().UTC().Format("2006-01-02")
	if day != w.curDay {
		if err := w.rotateLocked(day); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(day string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForDay(day))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForDay(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curDay = day
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForDay(day string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, day))
}

// RoundEntry is one resolved round in the append-only history.
type RoundEntry struct {
	GameID     string            `json:"game_id"`
	Round      int               `json:"round"`
	Audit      engine.AuditTrail `json:"audit"`
	Standings  []engine.Standing `json:"standings"`
	Summary    []string          `json:"summary"`
	Warnings   []engine.Warning  `json:"warnings,omitempty"`
	ResolvedAt string            `json:"resolved_at"`
}

// RoundLogger writes one JSONL entry per resolved round (compressed). The
// store is the source of truth; this file is the greppable sidecar for
// post-game analysis.
type RoundLogger struct{ w *JSONLZstdWriter }

func NewRoundLogger(dataDir string) *RoundLogger {
	return &RoundLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "rounds"), "rounds")}
}

func (l *RoundLogger) WriteRound(gameID string, out *engine.RoundOutput) error {
	return l.w.Write(RoundEntry{
		GameID:     gameID,
		Round:      out.Round,
		Audit:      out.Audit,
		Standings:  out.Standings,
		Summary:    out.Summary,
		Warnings:   out.Warnings,
		ResolvedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (l *RoundLogger) Close() error { return l.w.Close() }
