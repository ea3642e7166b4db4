// Package archive keeps zstd-compressed copies of achievement exports,
// written before destructive operations replace a world's state.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

const backupExt = ".json.zst"

// Header is the first line of every backup file.
type Header struct {
	Version   int    `json:"version"`
	ID        string `json:"id"`
	WorldID   string `json:"world_id"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

type Meta struct {
	Header
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Archiver writes backups under <dataDir>/worlds/<world>/archives.
type Archiver struct {
	dataDir string
	now     func() time.Time
}

func NewArchiver(dataDir string) *Archiver {
	return &Archiver{dataDir: dataDir, now: time.Now}
}

func (a *Archiver) WorldDir(worldID string) string {
	return filepath.Join(a.dataDir, "worlds", worldID)
}

// Backup implements session.Archiver.
func (a *Archiver) Backup(worldID, reason string, export []byte) (string, error) {
	h := Header{
		Version:   1,
		ID:        uuid.NewString(),
		WorldID:   worldID,
		Reason:    reason,
		CreatedAt: a.now().UTC().Format(time.RFC3339Nano),
	}
	return WriteBackup(a.WorldDir(worldID), h, export)
}

// WriteBackup stores export as archives/backup_<time>_<id>.json.zst below
// worldDir and returns the path.
func WriteBackup(worldDir string, h Header, export []byte) (string, error) {
	if !json.Valid(export) {
		return "", fmt.Errorf("backup: export is not valid JSON")
	}
	created, err := time.Parse(time.RFC3339Nano, h.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("backup: created_at: %w", err)
	}
	dir := filepath.Join(worldDir, "archives")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("backup_%s_%s%s", created.UTC().Format("20060102T150405"), shortID(h.ID), backupExt)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", err
	}
	bw := bufio.NewWriter(enc)

	hb, _ := json.Marshal(h)
	if _, err := bw.Write(hb); err != nil {
		return "", err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return "", err
	}
	if _, err := bw.Write(export); err != nil {
		return "", err
	}
	if err := bw.Flush(); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return path, f.Close()
}

// ReadBackup returns the header and the export stored at path.
func ReadBackup(path string) (Header, []byte, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, nil, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, nil, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, nil, fmt.Errorf("decode header: %w", err)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return h, nil, err
	}
	return h, body, nil
}

// ListBackups returns the backups of a world, oldest first.
func ListBackups(worldDir string) ([]Meta, error) {
	matches, err := filepath.Glob(filepath.Join(worldDir, "archives", "backup_*"+backupExt))
	if err != nil {
		return nil, err
	}
	out := make([]Meta, 0, len(matches))
	for _, p := range matches {
		h, _, err := ReadBackup(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		st, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		out = append(out, Meta{Header: h, Path: p, Size: st.Size()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
