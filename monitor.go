package main

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Monitor owns the hot loop: poll the product page until the item is both in
// stock and under the ceiling, then hand off to the purchase engine.
type Monitor struct {
	config   *Config
	checker  *StockChecker
	engine   *PurchaseEngine
	record   *PurchaseRecord
	timeSync *TimeSync
	rand     *rand.Rand
	stopChan chan bool
}

func NewMonitor(config *Config, checker *StockChecker, engine *PurchaseEngine, record *PurchaseRecord, timeSync *TimeSync) *Monitor {
	return &Monitor{
		config:   config,
		checker:  checker,
		engine:   engine,
		record:   record,
		timeSync: timeSync,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		stopChan: make(chan bool, 1),
	}
}

// Stop asks a running monitor loop to wind down after the current check.
func (m *Monitor) Stop() {
	select {
	case m.stopChan <- true:
	default:
	}
}

// Run drives the whole watch-then-buy cycle. When once is set, a single
// stock check is performed and the result printed, no purchase.
func (m *Monitor) Run(once bool) error {
	if !m.config.SkipPurchaseRecord && m.record.HasBeenPurchased(m.config.ProductURL) {
		when, _ := m.record.PurchasedAt(m.config.ProductURL)
		fmt.Printf(T("monitor_already_purchased")+"\n", m.config.ProductURL, when.Local().Format("2006-01-02 15:04:05"))
		return nil
	}

	if m.config.StartAt != "" {
		if err := m.waitForStart(); err != nil {
			return err
		}
	}

	if once {
		status, err := m.checker.Check(m.config.ProductURL)
		if err != nil {
			return err
		}
		m.reportStatus(status, 1)
		return nil
	}

	status, checkCount, err := m.pollUntilBuyable()
	if err != nil {
		return err
	}

	fmt.Printf(T("monitor_target_acquired")+"\n", status.Price, m.config.MaxPrice, checkCount)

	deadline := time.Now().Add(time.Duration(m.config.PurchaseWindowSeconds) * time.Second)
	strategy, err := m.engine.Run(deadline)
	if err != nil {
		return err
	}

	fmt.Printf(T("monitor_purchase_complete")+"\n", strategy)

	if !m.config.SkipPurchaseRecord && !m.config.DryRun {
		if err := m.record.MarkPurchased(m.config.ProductURL); err != nil {
			fmt.Printf(T("monitor_record_save_failed")+"\n", err)
		}
	}

	return nil
}

// pollUntilBuyable loops stock checks with randomized pacing until the item
// is in stock under the price ceiling. Throttle and captcha responses get
// their own long backoffs so the loop does not dig the hole deeper.
func (m *Monitor) pollUntilBuyable() (*StockStatus, int, error) {
	checkCount := 0
	lastProgress := time.Now()

	for {
		select {
		case <-m.stopChan:
			return nil, checkCount, errors.New("monitor stopped")
		default:
		}

		checkCount++

		status, err := m.checker.Check(m.config.ProductURL)
		switch {
		case err == nil:
			if m.isBuyable(status, checkCount) {
				return status, checkCount, nil
			}
		case errors.Is(err, errThrottled):
			fmt.Printf(T("monitor_throttled")+"\n", checkCount)
			m.sleepInterruptible(m.throttleDelay())
			continue
		case errors.Is(err, errCaptcha):
			fmt.Printf(T("monitor_captcha")+"\n", checkCount)
			m.sleepInterruptible(time.Duration(m.config.CaptchaDelayMs) * time.Millisecond)
			continue
		default:
			if isNetworkError(err) {
				m.sleepInterruptible(time.Duration(m.config.GenericErrorDelayMs) * time.Millisecond)
				continue
			}
			return nil, checkCount, err
		}

		if time.Since(lastProgress) >= 30*time.Second {
			m.reportStatus(status, checkCount)
			lastProgress = time.Now()
		}

		m.sleepInterruptible(m.pollDelay())
	}
}

// isBuyable applies the ceiling gate. In stock with no parsed price is a
// report, not a trigger: firing blind on a high-value listing is how you buy
// a scalped unit at triple price.
func (m *Monitor) isBuyable(status *StockStatus, checkCount int) bool {
	if !status.InStock {
		return false
	}

	if !status.HavePrice {
		fmt.Printf(T("monitor_in_stock_no_price")+"\n", checkCount)
		return false
	}

	if status.Price > m.config.MaxPrice {
		fmt.Printf(T("monitor_over_ceiling")+"\n", status.Price, m.config.MaxPrice)
		return false
	}

	return true
}

func (m *Monitor) reportStatus(status *StockStatus, checkCount int) {
	if status.InStock {
		if status.HavePrice {
			fmt.Printf(T("monitor_status_in_stock")+"\n", checkCount, status.Price)
		} else {
			fmt.Printf(T("monitor_in_stock_no_price")+"\n", checkCount)
		}
	} else {
		fmt.Printf(T("monitor_status_out_of_stock")+"\n", checkCount, status.Reason)
	}
}

func (m *Monitor) pollDelay() time.Duration {
	minMs := m.config.PollDelayMinMs
	maxMs := m.config.PollDelayMaxMs
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	return time.Duration(minMs+m.rand.Intn(maxMs-minMs)) * time.Millisecond
}

func (m *Monitor) throttleDelay() time.Duration {
	minMs := m.config.ThrottleDelayMinMs
	maxMs := m.config.ThrottleDelayMaxMs
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	return time.Duration(minMs+m.rand.Intn(maxMs-minMs)) * time.Millisecond
}

func (m *Monitor) sleepInterruptible(d time.Duration) {
	select {
	case <-m.stopChan:
		// Put the stop back so the main loop sees it too.
		select {
		case m.stopChan <- true:
		default:
		}
	case <-time.After(d):
	}
}

// waitForStart sleeps until the configured launch time, against server time
// when the sync succeeded. Long waits print a countdown and resync hourly so
// a drifting clock cannot blow the start.
func (m *Monitor) waitForStart() error {
	target, err := ParseLaunchTime(m.config.StartAt)
	if err != nil {
		return fmt.Errorf("invalid start time: %w", err)
	}

	if err := m.timeSync.Sync(); err != nil {
		fmt.Printf(T("timesync_failed")+"\n", err)
	}

	now := m.timeSync.Now()
	if !target.After(now) {
		fmt.Println(T("monitor_start_time_passed"))
		return nil
	}

	fmt.Printf(T("monitor_waiting_until")+"\n", target.Local().Format("2006-01-02 15:04:05"), time.Until(target).Round(time.Second))

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		remaining := target.Sub(m.timeSync.Now())
		if remaining <= 0 {
			fmt.Println(T("monitor_start_time_reached"))
			return nil
		}

		// Short final approach: sleep the exact remainder, no more ticks.
		if remaining < 30*time.Second {
			select {
			case <-m.stopChan:
				return errors.New("monitor stopped")
			case <-time.After(remaining):
			}
			fmt.Println(T("monitor_start_time_reached"))
			return nil
		}

		select {
		case <-m.stopChan:
			return errors.New("monitor stopped")
		case <-ticker.C:
			fmt.Printf(T("monitor_countdown")+"\n", remaining.Round(time.Second))
			if m.timeSync.ShouldResync() {
				if err := m.timeSync.Sync(); err != nil {
					fmt.Printf(T("timesync_failed")+"\n", err)
				}
			}
		}
	}
}
