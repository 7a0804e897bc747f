package storage

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/uhyunpark/hypermarket/pkg/consensus"
)

// walRecord is the on-disk form of a journal entry, one JSON object per line
type walRecord struct {
	Kind    string `json:"kind"`
	Height  uint64 `json:"height"`
	Block   string `json:"block"`
	AppHash string `json:"app_hash"`
}

// FileWAL is an append-only journal of applied blocks
type FileWAL struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

func NewFileWAL(path string) (*FileWAL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileWAL{f: f, enc: json.NewEncoder(f)}, nil
}

func (w *FileWAL) Append(e consensus.WALEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(walRecord{
		Kind:    e.Kind,
		Height:  uint64(e.Height),
		Block:   hex.EncodeToString(e.Block[:]),
		AppHash: hex.EncodeToString(e.AppHash[:]),
	})
}

func (w *FileWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// ReadWAL returns the entries journaled at path. A missing file is an
// empty journal; a torn last line left by a crash is dropped.
func ReadWAL(path string) ([]consensus.WALEntry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []consensus.WALEntry
	var torn error
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		if torn != nil {
			return nil, torn
		}
		var rec walRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			torn = fmt.Errorf("wal line %d: %w", line, err)
			continue
		}
		e := consensus.WALEntry{Kind: rec.Kind, Height: consensus.Height(rec.Height)}
		if err := decodeHash(rec.Block, &e.Block); err != nil {
			return nil, fmt.Errorf("wal line %d: block: %w", line, err)
		}
		if err := decodeHash(rec.AppHash, &e.AppHash); err != nil {
			return nil, fmt.Errorf("wal line %d: app_hash: %w", line, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

func decodeHash(s string, h *consensus.Hash) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != len(h) {
		return fmt.Errorf("want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return nil
}

var _ consensus.WAL = (*FileWAL)(nil)
