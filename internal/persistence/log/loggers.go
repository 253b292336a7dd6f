// Package log writes hourly rotated, zstd-compressed JSONL streams: the
// per-tick session log and the command audit trail.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"stationsim.ai/internal/sim/game"
)

const hourLayout = "2006-01-02-15"

// JSONLZstdWriter appends JSON lines to <dir>/<prefix>-<hour>.jsonl.zst and
// opens a new file whenever the UTC hour changes. Each Write is flushed
// through the encoder, so a crash loses at most the current frame.
type JSONLZstdWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	hour string
	f    *os.File
	enc  *zstd.Encoder
	bw   *bufio.Writer
}

func NewJSONLZstdWriter(dir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{dir: dir, prefix: prefix, now: time.Now}
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if hour := w.now().UTC().Format(hourLayout); hour != w.hour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.bw.Write(b); err != nil {
		return err
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Path returns the file a write at t would land in.
func (w *JSONLZstdWriter) Path(t time.Time) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, t.UTC().Format(hourLayout)))
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc, w.hour = f, enc, hour
	w.bw = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var errs []error
	if w.bw != nil {
		errs = append(errs, w.bw.Flush())
	}
	if w.enc != nil {
		errs = append(errs, w.enc.Close())
	}
	if w.f != nil {
		errs = append(errs, w.f.Close())
	}
	w.bw, w.enc, w.f, w.hour = nil, nil, nil, ""
	return errors.Join(errs...)
}

// TickLogger implements game.TickLogger under <stationDir>/ticks.
type TickLogger struct{ w *JSONLZstdWriter }

var _ game.TickLogger = (*TickLogger)(nil)

func NewTickLogger(stationDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(stationDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(e game.TickLogEntry) error { return l.w.Write(e) }
func (l *TickLogger) Close() error                        { return l.w.Close() }

// AuditEntry records one client command and its outcome.
type AuditEntry struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id"`
	ReqID     string    `json:"req_id"`
	Cmd       string    `json:"cmd"`
	OK        bool      `json:"ok"`
	Code      string    `json:"code,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// AuditLogger writes AuditEntry lines under <stationDir>/audit.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(stationDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(stationDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(e AuditEntry) error { return l.w.Write(e) }
func (l *AuditLogger) Close() error                  { return l.w.Close() }

// ReadJSONL decodes every line of a .jsonl.zst file and passes it to fn.
// Decoding stops at the first error fn returns.
func ReadJSONL(path string, fn func(json.RawMessage) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	jd := json.NewDecoder(dec)
	for {
		var raw json.RawMessage
		if err := jd.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
}

// ReadTicks returns the tick entries of every file under dir, oldest first.
func ReadTicks(dir string) ([]game.TickLogEntry, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	var out []game.TickLogEntry
	for _, path := range files {
		err := ReadJSONL(path, func(raw json.RawMessage) error {
			var e game.TickLogEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
