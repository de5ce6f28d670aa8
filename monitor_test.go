package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestMonitor() *Monitor {
	config := DefaultConfig()
	config.ProductURL = "https://www.amazon.com/dp/B0MONITOR0"
	return NewMonitor(config, nil, nil, nil, NewTimeSync())
}

func TestPollDelayBounds(t *testing.T) {
	monitor := newTestMonitor()
	minD := time.Duration(monitor.config.PollDelayMinMs) * time.Millisecond
	maxD := time.Duration(monitor.config.PollDelayMaxMs) * time.Millisecond

	for i := 0; i < 100; i++ {
		delay := monitor.pollDelay()
		if delay < minD || delay >= maxD {
			t.Fatalf("pollDelay() = %v, expected within [%v, %v)", delay, minD, maxD)
		}
	}
}

func TestThrottleDelayBounds(t *testing.T) {
	monitor := newTestMonitor()
	minD := time.Duration(monitor.config.ThrottleDelayMinMs) * time.Millisecond
	maxD := time.Duration(monitor.config.ThrottleDelayMaxMs) * time.Millisecond

	for i := 0; i < 100; i++ {
		delay := monitor.throttleDelay()
		if delay < minD || delay >= maxD {
			t.Fatalf("throttleDelay() = %v, expected within [%v, %v)", delay, minD, maxD)
		}
	}
}

func TestPollDelayDegenerateBounds(t *testing.T) {
	monitor := newTestMonitor()
	monitor.config.PollDelayMinMs = 500
	monitor.config.PollDelayMaxMs = 500

	if delay := monitor.pollDelay(); delay != 500*time.Millisecond {
		t.Errorf("Equal bounds should yield the fixed delay, got %v", delay)
	}
}

func TestIsBuyableCeilingGate(t *testing.T) {
	monitor := newTestMonitor()
	monitor.config.MaxPrice = 2800.00

	tests := []struct {
		name     string
		status   StockStatus
		expected bool
	}{
		{
			name:     "in stock under ceiling",
			status:   StockStatus{InStock: true, Price: 2499.99, HavePrice: true},
			expected: true,
		},
		{
			name:     "in stock at exactly the ceiling",
			status:   StockStatus{InStock: true, Price: 2800.00, HavePrice: true},
			expected: true,
		},
		{
			name:     "in stock over ceiling",
			status:   StockStatus{InStock: true, Price: 2800.01, HavePrice: true},
			expected: false,
		},
		{
			name:     "in stock without a price",
			status:   StockStatus{InStock: true, HavePrice: false},
			expected: false,
		},
		{
			name:     "out of stock",
			status:   StockStatus{InStock: false, Price: 100, HavePrice: true},
			expected: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := monitor.isBuyable(&test.status, 1)
			if result != test.expected {
				t.Errorf("isBuyable = %v, expected %v", result, test.expected)
			}
		})
	}
}

func TestMonitorSkipsAlreadyPurchased(t *testing.T) {
	dir := t.TempDir()
	record, err := LoadPurchaseRecord(dir + "/purchase_record.json")
	if err != nil {
		t.Fatalf("LoadPurchaseRecord failed: %v", err)
	}

	config := DefaultConfig()
	config.ProductURL = "https://www.amazon.com/dp/B0BOUGHT00"
	if err := record.MarkPurchased(config.ProductURL); err != nil {
		t.Fatalf("MarkPurchased failed: %v", err)
	}

	// No checker or engine wired: if the monitor does not exit on the record
	// check, it panics and the test fails loudly.
	monitor := NewMonitor(config, nil, nil, record, NewTimeSync())
	if err := monitor.Run(false); err != nil {
		t.Errorf("Run should exit cleanly for an already-purchased item, got %v", err)
	}
}

func TestMonitorKeepsRunningUntilStopped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div id="availability"><span>Currently unavailable.</span></div></body></html>`))
	}))
	defer server.Close()

	config := DefaultConfig()
	config.ProductURL = server.URL
	config.PollDelayMinMs = 10
	config.PollDelayMaxMs = 20
	monitor := NewMonitor(config, NewStockChecker(config), nil, nil, NewTimeSync())

	done := make(chan error, 1)
	go func() {
		_, _, err := monitor.pollUntilBuyable()
		done <- err
	}()

	// An out-of-stock page must not end the loop on its own.
	select {
	case err := <-done:
		t.Fatalf("Poll loop ended without Stop: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	monitor.Stop()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Stopped poll loop should report why it ended")
		}
	case <-time.After(2 * time.Second):
		t.Error("Poll loop should end promptly after Stop")
	}
}

func TestMonitorStop(t *testing.T) {
	monitor := newTestMonitor()
	monitor.Stop()

	done := make(chan struct{})
	go func() {
		monitor.sleepInterruptible(10 * time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("sleepInterruptible should return promptly after Stop")
	}
}
