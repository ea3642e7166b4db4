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

	"achievements.party/internal/session"
)

// Stream is a log kind. Its segments live in <worldDir>/<stream>/ and are
// named <stream>-YYYY-MM-DD-HH.jsonl.zst.
type Stream string

const (
	StreamAudit  Stream = "audit"
	StreamEvents Stream = "events"
)

func (s Stream) Dir(worldDir string) string { return filepath.Join(worldDir, string(s)) }

const hourLayout = "2006-01-02-15"

// Segmented appends entries as JSON lines to one zstd segment per UTC hour.
type Segmented[T any] struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	hour string
	seg  *segment
}

func newSegmented[T any](dir, prefix string) *Segmented[T] {
	return &Segmented[T]{dir: dir, prefix: prefix, now: time.Now}
}

// Append writes v and flushes the zstd block, so readers see the line
// before the segment is closed.
func (l *Segmented[T]) Append(v T) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if hour := l.now().UTC().Format(hourLayout); hour != l.hour || l.seg == nil {
		if err := l.closeSegment(); err != nil {
			return err
		}
		seg, err := openSegment(filepath.Join(l.dir, fmt.Sprintf("%s-%s.jsonl.zst", l.prefix, hour)))
		if err != nil {
			return err
		}
		l.seg, l.hour = seg, hour
	}
	return l.seg.append(line)
}

func (l *Segmented[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeSegment()
}

func (l *Segmented[T]) closeSegment() error {
	if l.seg == nil {
		return nil
	}
	err := l.seg.close()
	l.seg, l.hour = nil, ""
	return err
}

type segment struct {
	f   *os.File
	enc *zstd.Encoder
	buf *bufio.Writer
}

func openSegment(path string) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{f: f, enc: enc, buf: bufio.NewWriterSize(enc, 16*1024)}, nil
}

func (s *segment) append(line []byte) error {
	if _, err := s.buf.Write(line); err != nil {
		return err
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.enc.Flush()
}

func (s *segment) close() error {
	_ = s.buf.Flush()
	err := s.enc.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// AuditLogger implements session.AuditLogger.
type AuditLogger struct{ *Segmented[session.AuditEntry] }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{newSegmented[session.AuditEntry](StreamAudit.Dir(worldDir), string(StreamAudit))}
}

func (l *AuditLogger) WriteAudit(e session.AuditEntry) error { return l.Append(e) }

// EventLogger implements session.EventLogger.
type EventLogger struct{ *Segmented[session.EventLogEntry] }

func NewEventLogger(worldDir string) *EventLogger {
	return &EventLogger{newSegmented[session.EventLogEntry](StreamEvents.Dir(worldDir), string(StreamEvents))}
}

func (l *EventLogger) WriteEvent(e session.EventLogEntry) error { return l.Append(e) }
