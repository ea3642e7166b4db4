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

	"github.com/klauspost/compress/zstd"

	"achievements.party/internal/session"
)

// Files lists the <prefix>-*.jsonl.zst files under dir, oldest first.
func Files(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadJSONL calls fn for every line of a .jsonl.zst file. A file still open
// for writing ends in an unterminated frame; everything flushed before it is
// returned.
func ReadJSONL(path string, fn func(line []byte) error) error {
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

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	return nil
}

// ReadAudit returns every audit entry of a world, oldest first.
func ReadAudit(worldDir string) ([]session.AuditEntry, error) {
	files, err := Files(StreamAudit.Dir(worldDir), string(StreamAudit))
	if err != nil {
		return nil, err
	}
	var out []session.AuditEntry
	for _, p := range files {
		err := ReadJSONL(p, func(line []byte) error {
			var e session.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(p), err)
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
