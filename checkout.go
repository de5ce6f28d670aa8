package main

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// CheckoutSession is the HTTP side of the bot: cookies, CSRF token and user
// agent lifted from the logged-in browser so requests are indistinguishable
// from that browser's own.
type CheckoutSession struct {
	client    *http.Client
	config    *Config
	baseURL   string
	cookies   []*http.Cookie
	csrfToken string
	userAgent string
}

func NewCheckoutSession(config *Config) (*CheckoutSession, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		Jar:     jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &CheckoutSession{
		client:    client,
		config:    config,
		baseURL:   "https://www.amazon.com",
		userAgent: defaultUserAgent,
	}, nil
}

// LoadFromBrowser extracts the live session out of the automation browser.
func (s *CheckoutSession) LoadFromBrowser(automation *Automation) error {
	fmt.Println(T("session_extracting"))

	if automation == nil || automation.page == nil {
		return fmt.Errorf("browser not initialized")
	}

	cookies, err := automation.page.Cookies([]string{s.baseURL})
	if err != nil {
		return fmt.Errorf("failed to get cookies: %w", err)
	}

	s.cookies = s.cookies[:0]
	for _, cookie := range cookies {
		var expires time.Time
		if cookie.Expires > 0 {
			expires = time.Unix(int64(cookie.Expires), 0)
		}

		s.cookies = append(s.cookies, &http.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Path:     cookie.Path,
			Domain:   cookie.Domain,
			Expires:  expires,
			Secure:   cookie.Secure,
			HttpOnly: cookie.HTTPOnly,
		})
	}

	fmt.Printf(T("session_cookies_extracted")+"\n", len(s.cookies))

	csrfToken, err := automation.page.Eval(`() => {
		const input = document.querySelector('input[name="anti-csrftoken-a2z"]');
		if (input) return input.value;

		const meta = document.querySelector('meta[name="anti-csrftoken-a2z"]');
		if (meta) return meta.getAttribute('content');
		return null;
	}`)
	if err == nil && csrfToken.Value.Str() != "" {
		s.csrfToken = csrfToken.Value.Str()
		fmt.Println(T("session_csrf_extracted"))
	} else {
		fmt.Println(T("session_csrf_not_found"))
	}

	userAgentResult, err := automation.page.Eval(`() => navigator.userAgent`)
	if err == nil && userAgentResult.Value.Str() != "" {
		s.userAgent = userAgentResult.Value.Str()
	}

	return nil
}

var asinRe = regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})`)

// extractASIN pulls the 10-character product id out of a product URL.
func extractASIN(productURL string) (string, error) {
	matches := asinRe.FindStringSubmatch(productURL)
	if len(matches) < 2 {
		return "", fmt.Errorf("could not find ASIN in URL: %s", productURL)
	}
	return matches[1], nil
}

// TurboInitiate fires the buybox's turbo-checkout request directly over HTTP
// and returns the checkout panel it responds with. This is the fastest of the
// purchase paths when it works and the flakiest when Amazon rotates the
// endpoint; it is raced against the browser paths, never relied on alone.
func (s *CheckoutSession) TurboInitiate(asin string) (string, error) {
	form := url.Values{}
	form.Set("asin", asin)
	form.Set("quantity", "1")
	form.Set("isAsync", "1")

	req, err := http.NewRequest("POST", s.baseURL+"/checkout/turbo-initiate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create turbo request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Origin", s.baseURL)
	req.Header.Set("Referer", s.config.ProductURL)
	req.Header.Set("x-amz-checkout-csrf-token", s.csrfToken)

	for _, cookie := range s.cookies {
		req.AddCookie(cookie)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("turbo-initiate request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read turbo-initiate response: %w", err)
	}

	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusSeeOther {
		loc := resp.Header.Get("Location")
		if strings.Contains(loc, "/ap/signin") {
			return "", fmt.Errorf("turbo-initiate redirected to sign-in: session expired")
		}
		return "", fmt.Errorf("turbo-initiate redirected to %s", loc)
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return "", errThrottled
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("turbo-initiate HTTP error %d", resp.StatusCode)
	}

	if isCaptchaPage(body) {
		return "", errCaptcha
	}

	// The response is a checkout panel fragment. An empty or error panel means
	// the offer is not turbo-eligible right now.
	panel := string(body)
	if !strings.Contains(panel, "turbo-checkout") {
		return "", fmt.Errorf("turbo-initiate returned no checkout panel")
	}

	return panel, nil
}

var turboPidRe = regexp.MustCompile(`name="ppw-widgetState"\s+value="([^"]+)"`)

// TurboPlaceOrder submits the order from a turbo-initiate checkout panel.
func (s *CheckoutSession) TurboPlaceOrder(panel string) error {
	matches := turboPidRe.FindStringSubmatch(panel)
	if len(matches) < 2 {
		return fmt.Errorf("turbo panel is missing the order state token")
	}

	form := url.Values{}
	form.Set("ppw-widgetState", matches[1])
	form.Set("ppw-widgetEvent", "turbo-checkout-place-order")

	req, err := http.NewRequest("POST", s.baseURL+"/checkout/spc/place-order", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create place-order request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", s.baseURL)
	req.Header.Set("Referer", s.config.ProductURL)
	req.Header.Set("x-amz-checkout-csrf-token", s.csrfToken)

	for _, cookie := range s.cookies {
		req.AddCookie(cookie)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("place-order request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read place-order response: %w", err)
	}

	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusSeeOther {
		loc := resp.Header.Get("Location")
		if strings.Contains(loc, "/gp/buy/thankyou") {
			return nil
		}
		if strings.Contains(loc, "/ap/signin") {
			return fmt.Errorf("place-order redirected to sign-in: session expired")
		}
		return fmt.Errorf("place-order redirected to %s", loc)
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return errThrottled
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("place-order HTTP error %d", resp.StatusCode)
	}

	if isCaptchaPage(body) {
		return errCaptcha
	}

	if !strings.Contains(string(body), "thankyou") && !strings.Contains(string(body), "order placed") {
		return fmt.Errorf("place-order response did not confirm the order")
	}

	return nil
}

func isThrottleError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "throttle") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isOutOfStockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "out of stock") ||
		strings.Contains(errStr, "not available") ||
		strings.Contains(errStr, "unavailable") ||
		strings.Contains(errStr, "no enabled buy affordance")
}

func isCaptchaError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "captcha") ||
		strings.Contains(errStr, "CAPTCHA") ||
		strings.Contains(errStr, "Robot Check")
}

func isSignedOutError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "/ap/signin") ||
		strings.Contains(errStr, "session expired") ||
		strings.Contains(errStr, "sign-in") ||
		strings.Contains(errStr, "not logged in")
}

// isNetworkError checks if an error is a network/timeout error that should be retried
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "Client.Timeout") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "no route to host")
}

// retryOnNetworkError wraps an operation with retry logic for network/timeout
// errors. Retries until success, a non-network error, or the deadline. A
// persistent outage must not wedge a purchase strategy past its window.
func retryOnNetworkError(deadline time.Time, operation func() error, operationName string) error {
	attemptNum := 0
	for {
		attemptNum++
		err := operation()

		if err == nil {
			return nil
		}

		if !isNetworkError(err) {
			return err
		}

		delay := time.Duration(500+rand.Intn(1000)) * time.Millisecond
		if time.Now().Add(delay).After(deadline) {
			return fmt.Errorf("%s: still failing at the deadline after %d attempts: %w", operationName, attemptNum, err)
		}

		if attemptNum%10 == 0 || attemptNum <= 3 {
			fmt.Printf(T("retry_network_error")+"\n", operationName, attemptNum, delay.Milliseconds())
		}
		time.Sleep(delay)
	}
}
