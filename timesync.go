package main

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// timeSources are probed in order; the first few that answer with a Date
// header are averaged. Amazon first, since its clock is the one that matters
// for a scheduled drop.
var timeSources = []string{
	"https://www.amazon.com",
	"https://www.google.com",
	"https://www.cloudflare.com",
}

// TimeSync keeps a local-to-server clock offset so scheduled starts fire on
// the retailer's time, not the machine's.
type TimeSync struct {
	mu       sync.RWMutex
	offset   time.Duration
	synced   bool
	lastSync time.Time
	client   *http.Client
}

func NewTimeSync() *TimeSync {
	return &TimeSync{
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Sync probes the time sources and records the average offset. HTTP Date
// headers have one-second resolution, which is plenty for a purchase window
// measured in minutes.
func (ts *TimeSync) Sync() error {
	var offsets []time.Duration

	for _, server := range timeSources {
		offset, err := ts.probeServer(server)
		if err != nil {
			continue
		}
		offsets = append(offsets, offset)

		if len(offsets) >= 2 {
			break
		}
	}

	if len(offsets) == 0 {
		return fmt.Errorf("no time source responded")
	}

	var total time.Duration
	for _, o := range offsets {
		total += o
	}
	avg := total / time.Duration(len(offsets))

	ts.mu.Lock()
	ts.offset = avg
	ts.synced = true
	ts.lastSync = time.Now()
	ts.mu.Unlock()

	fmt.Printf(T("timesync_synced")+"\n", avg.Round(time.Millisecond), len(offsets))
	return nil
}

func (ts *TimeSync) probeServer(server string) (time.Duration, error) {
	before := time.Now()

	req, err := http.NewRequest("HEAD", server, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := ts.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	after := time.Now()

	dateStr := resp.Header.Get("Date")
	if dateStr == "" {
		return 0, fmt.Errorf("no Date header from %s", server)
	}

	serverTime, err := http.ParseTime(dateStr)
	if err != nil {
		return 0, fmt.Errorf("bad Date header from %s: %w", server, err)
	}

	// Assume the Date header was stamped halfway through the round trip.
	midpoint := before.Add(after.Sub(before) / 2)
	return serverTime.Sub(midpoint), nil
}

// Now returns the current time corrected by the last measured offset, or the
// raw local time when no sync has happened.
func (ts *TimeSync) Now() time.Time {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	if !ts.synced {
		return time.Now()
	}
	return time.Now().Add(ts.offset)
}

func (ts *TimeSync) IsSynced() bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.synced
}

func (ts *TimeSync) GetOffset() time.Duration {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}

// ShouldResync reports whether the last sync is stale. Hourly keeps drift
// well under the one-second Date resolution.
func (ts *TimeSync) ShouldResync() bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	if !ts.synced {
		return true
	}
	return time.Since(ts.lastSync) > time.Hour
}
