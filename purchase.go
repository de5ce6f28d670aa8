package main

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// purchaseResult is what a strategy reports back when it wins or gives up.
type purchaseResult struct {
	strategy string
	err      error
}

// PurchaseEngine races every purchase path at once and takes the first
// confirmed order. Losing strategies are abandoned where they stand.
type PurchaseEngine struct {
	config     *Config
	automation *Automation
	session    *CheckoutSession
	record     *PurchaseRecord
}

func NewPurchaseEngine(config *Config, automation *Automation, session *CheckoutSession, record *PurchaseRecord) *PurchaseEngine {
	return &PurchaseEngine{
		config:     config,
		automation: automation,
		session:    session,
		record:     record,
	}
}

type strategyFunc struct {
	name string
	run  func(deadline time.Time) error
}

// Run fires all strategies in parallel and returns the name of the winner.
// Exactly one strategy can claim the win; the rest keep retrying until the
// deadline and their results are discarded.
func (e *PurchaseEngine) Run(deadline time.Time) (string, error) {
	strategies := []strategyFunc{
		{name: "turbo-checkout", run: e.turboStrategy},
		{name: "buy-now", run: e.buyNowStrategy},
		{name: "cart-flow", run: e.cartFlowStrategy},
	}

	fmt.Printf(T("purchase_window_open")+"\n", len(strategies), time.Until(deadline).Round(time.Second))

	return e.race(strategies, deadline)
}

// race runs every strategy concurrently and returns the first winner's name.
func (e *PurchaseEngine) race(strategies []strategyFunc, deadline time.Time) (string, error) {
	results := make(chan purchaseResult, len(strategies))
	var once sync.Once
	won := make(chan struct{})

	for _, s := range strategies {
		s := s
		go func() {
			err := e.retryUntilDeadline(s.name, s.run, deadline, won)
			if err == nil {
				once.Do(func() { close(won) })
			}
			results <- purchaseResult{strategy: s.name, err: err}
		}()
	}

	var lastErr error
	for range strategies {
		result := <-results
		if result.err == nil {
			return result.strategy, nil
		}
		lastErr = result.err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no purchase strategy succeeded")
	}
	return "", fmt.Errorf("purchase window closed without an order: %w", lastErr)
}

// retryUntilDeadline keeps re-running one strategy, pausing between attempts
// based on what kind of error came back. A win elsewhere stops the loop.
func (e *PurchaseEngine) retryUntilDeadline(name string, attempt func(time.Time) error, deadline time.Time, won <-chan struct{}) error {
	attemptNum := 0
	var lastErr error

	for time.Now().Before(deadline) {
		select {
		case <-won:
			return fmt.Errorf("another strategy completed first")
		default:
		}

		attemptNum++
		err := attempt(deadline)
		if err == nil {
			fmt.Printf(T("purchase_strategy_won")+"\n", name, attemptNum)
			return nil
		}
		lastErr = err

		e.automation.debugLog("[%s] attempt %d failed: %v", name, attemptNum, err)

		// A dead session will not come back on its own; stop burning attempts.
		if isSignedOutError(err) {
			return fmt.Errorf("[%s] session lost: %w", name, err)
		}

		delay := e.delayFor(err)
		if time.Now().Add(delay).After(deadline) {
			break
		}

		select {
		case <-won:
			return fmt.Errorf("another strategy completed first")
		case <-time.After(delay):
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("purchase window expired")
	}
	return fmt.Errorf("[%s] gave up: %w", name, lastErr)
}

// delayFor maps an error class to how long the strategy should back off.
// Throttles and captchas need long pauses, everything else retries hot.
// Uses the global rand source: all three strategies call this concurrently.
func (e *PurchaseEngine) delayFor(err error) time.Duration {
	switch {
	case isCaptchaError(err):
		return time.Duration(e.config.CaptchaDelayMs) * time.Millisecond
	case isThrottleError(err):
		minMs := e.config.ThrottleDelayMinMs
		maxMs := e.config.ThrottleDelayMaxMs
		if maxMs <= minMs {
			return time.Duration(minMs) * time.Millisecond
		}
		return time.Duration(minMs+rand.Intn(maxMs-minMs)) * time.Millisecond
	case isOutOfStockError(err):
		return time.Duration(e.config.OutOfStockDelayMs) * time.Millisecond
	default:
		return time.Duration(e.config.GenericErrorDelayMs) * time.Millisecond
	}
}

// turboStrategy goes straight through the HTTP session, no browser involved.
// Cheapest to retry, so it runs alongside the two click paths.
func (e *PurchaseEngine) turboStrategy(deadline time.Time) error {
	asin, err := extractASIN(e.config.ProductURL)
	if err != nil {
		return err
	}

	var panel string
	err = retryOnNetworkError(deadline, func() error {
		var initErr error
		panel, initErr = e.session.TurboInitiate(asin)
		return initErr
	}, "turbo-initiate")
	if err != nil {
		return err
	}

	if e.config.DryRun {
		fmt.Println(T("purchase_dry_run_stop"))
		return nil
	}

	// place-order is never blind-retried: a timeout after the POST landed
	// would mean a second order.
	return e.session.TurboPlaceOrder(panel)
}

// buyNowStrategy clicks the buy-now button and rides the speed path through
// the one-page checkout.
func (e *PurchaseEngine) buyNowStrategy(deadline time.Time) error {
	page, err := e.automation.NewProductPage()
	if err != nil {
		return err
	}
	defer page.Close()

	if err := e.clickFirst(page, e.config.Selectors.BuyNowButton); err != nil {
		return fmt.Errorf("no enabled buy affordance: %w", err)
	}

	return e.finishCheckout(page)
}

// cartFlowStrategy takes the slower add-to-cart route. It survives layouts
// where buy-now is missing or gated behind the cart.
func (e *PurchaseEngine) cartFlowStrategy(deadline time.Time) error {
	page, err := e.automation.NewProductPage()
	if err != nil {
		return err
	}
	defer page.Close()

	if err := e.clickFirst(page, e.config.Selectors.AddToCartButton); err != nil {
		return fmt.Errorf("no enabled buy affordance: %w", err)
	}

	if err := e.clickFirst(page, e.config.Selectors.ProceedToCheckout); err != nil {
		return fmt.Errorf("checkout button not reachable: %w", err)
	}

	return e.finishCheckout(page)
}

// finishCheckout places the order from whatever checkout page the strategy
// landed on, then verifies the confirmation actually rendered.
func (e *PurchaseEngine) finishCheckout(page *rod.Page) error {
	if e.config.DryRun {
		fmt.Println(T("purchase_dry_run_stop"))
		return nil
	}

	if err := e.clickFirst(page, e.config.Selectors.PlaceOrderButton); err != nil {
		return fmt.Errorf("place order button not found: %w", err)
	}

	return e.confirmOrder(page)
}

// clickFirst tries each selector in a comma-separated list until one resolves
// to an enabled element and the click lands.
func (e *PurchaseEngine) clickFirst(page *rod.Page, selectorList string) error {
	var lastErr error

	for _, selector := range splitSelectors(selectorList) {
		el, err := page.Timeout(3 * time.Second).Element(selector)
		if err != nil {
			lastErr = err
			continue
		}

		if disabled, _ := el.Attribute("disabled"); disabled != nil {
			lastErr = fmt.Errorf("element %s is disabled", selector)
			continue
		}

		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			lastErr = err
			continue
		}

		return nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no selectors in %q", selectorList)
	}
	return lastErr
}

// confirmOrder waits for proof the order went through, either the thank-you
// URL or the confirmation element. A click that lands on a captcha or a
// sign-in wall comes back as the matching error class so the retry loop can
// pick the right delay.
func (e *PurchaseEngine) confirmOrder(page *rod.Page) error {
	deadline := time.Now().Add(15 * time.Second)

	for time.Now().Before(deadline) {
		info, err := page.Info()
		if err != nil {
			return fmt.Errorf("network error: lost page during confirmation: %w", err)
		}

		if strings.Contains(info.URL, "/gp/buy/thankyou") {
			return nil
		}
		if strings.Contains(info.URL, "/ap/signin") {
			return fmt.Errorf("session expired during checkout")
		}
		if strings.Contains(info.URL, "/errors/validateCaptcha") {
			return fmt.Errorf("captcha interstitial during checkout")
		}

		if _, err := page.Timeout(1 * time.Second).Element(e.config.Selectors.OrderConfirmation); err == nil {
			return nil
		}
	}

	return fmt.Errorf("order confirmation did not appear")
}
