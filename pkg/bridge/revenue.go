// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RevenueLedger accumulates gross purchase income into one flat file per
// calendar month.
type RevenueLedger struct {
	mu  sync.Mutex
	dir string
}

// NewRevenueLedger creates a ledger rooted at dir.
func NewRevenueLedger(dir string) *RevenueLedger {
	return &RevenueLedger{dir: dir}
}

func (r *RevenueLedger) monthPath(ts time.Time) string {
	return filepath.Join(r.dir, ts.Format("2006-01")+".dat")
}

// Add folds gross into the month of ts.
func (r *RevenueLedger) Add(ts time.Time, gross float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	total, err := r.read(ts)
	if err != nil {
		return err
	}
	total += gross

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	path := r.monthPath(ts)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatFloat(total, 'f', -1, 64)), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Total returns the accumulated gross for the month of ts.
func (r *RevenueLedger) Total(ts time.Time) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(ts)
}

func (r *RevenueLedger) read(ts time.Time) (float64, error) {
	raw, err := os.ReadFile(r.monthPath(ts))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
}
