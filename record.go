package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PurchaseRecord is the flat URL → timestamp file that stops the bot from
// buying the same product twice across runs.
type PurchaseRecord struct {
	path    string
	mu      sync.Mutex
	entries map[string]string

	// now is swappable so records can carry synced time instead of local time.
	now func() time.Time
}

// LoadPurchaseRecord reads the record file, creating an empty one when missing.
// A corrupt file is treated as empty rather than fatal: losing the record only
// risks a duplicate purchase prompt, while refusing to start helps nobody
// during a drop.
func LoadPurchaseRecord(path string) (*PurchaseRecord, error) {
	r := &PurchaseRecord{
		path:    path,
		entries: make(map[string]string),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := r.save(); err != nil {
			return nil, err
		}
		return r, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &r.entries); err != nil {
		r.entries = make(map[string]string)
	}

	return r, nil
}

func (r *PurchaseRecord) HasBeenPurchased(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[url]
	return ok
}

// PurchasedAt returns the recorded purchase time for a URL, if any.
func (r *PurchaseRecord) PurchasedAt(url string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, ok := r.entries[url]
	if !ok {
		return time.Time{}, false
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (r *PurchaseRecord) MarkPurchased(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[url] = r.now().UTC().Format(time.RFC3339)
	return r.save()
}

// save writes via a temp file and rename so an interrupt mid-write cannot
// leave a truncated record behind.
func (r *PurchaseRecord) save() error {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal purchase record: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".purchase_record-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, r.path)
}
