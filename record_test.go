package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPurchaseRecordLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "purchase_record.json")

	record, err := LoadPurchaseRecord(path)
	if err != nil {
		t.Fatalf("LoadPurchaseRecord failed: %v", err)
	}

	url := "https://www.amazon.com/dp/B0RECORD00"

	if record.HasBeenPurchased(url) {
		t.Error("Fresh record should not report a purchase")
	}

	if err := record.MarkPurchased(url); err != nil {
		t.Fatalf("MarkPurchased failed: %v", err)
	}

	if !record.HasBeenPurchased(url) {
		t.Error("Record should report the purchase after marking")
	}

	when, ok := record.PurchasedAt(url)
	if !ok {
		t.Fatal("PurchasedAt should find the marked purchase")
	}
	if time.Since(when) > time.Minute {
		t.Errorf("Purchase timestamp is stale: %v", when)
	}
}

func TestPurchaseRecordPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "purchase_record.json")

	record, err := LoadPurchaseRecord(path)
	if err != nil {
		t.Fatalf("LoadPurchaseRecord failed: %v", err)
	}

	url := "https://www.amazon.com/dp/B0PERSIST0"
	if err := record.MarkPurchased(url); err != nil {
		t.Fatalf("MarkPurchased failed: %v", err)
	}

	reloaded, err := LoadPurchaseRecord(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if !reloaded.HasBeenPurchased(url) {
		t.Error("Purchase should survive a reload from disk")
	}
}

func TestPurchaseRecordFixedClock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "purchase_record.json")

	record, err := LoadPurchaseRecord(path)
	if err != nil {
		t.Fatalf("LoadPurchaseRecord failed: %v", err)
	}

	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	record.now = func() time.Time { return fixed }

	url := "https://www.amazon.com/dp/B0CLOCK000"
	if err := record.MarkPurchased(url); err != nil {
		t.Fatalf("MarkPurchased failed: %v", err)
	}

	when, ok := record.PurchasedAt(url)
	if !ok {
		t.Fatal("PurchasedAt should find the purchase")
	}
	if !when.Equal(fixed) {
		t.Errorf("Expected timestamp %v, got %v", fixed, when)
	}
}

func TestPurchaseRecordCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "purchase_record.json")

	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	record, err := LoadPurchaseRecord(path)
	if err != nil {
		t.Fatalf("Corrupt record file should not be fatal: %v", err)
	}

	if record.HasBeenPurchased("https://www.amazon.com/dp/B0ANYTHING") {
		t.Error("Corrupt record should behave as empty")
	}
}
