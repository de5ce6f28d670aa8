package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// StockStatus is the outcome of one heuristic scrape of the product page.
// Everything here is a guess against an unversioned DOM; Reason records which
// heuristic produced the verdict so the operator can see why the bot held fire.
type StockStatus struct {
	InStock   bool
	Price     float64
	HavePrice bool
	Reason    string
}

var (
	errThrottled = fmt.Errorf("request throttled (HTTP 503)")
	errCaptcha   = fmt.Errorf("captcha interstitial served instead of product page")
)

var priceRe = regexp.MustCompile(`\$([0-9][0-9,]*(?:\.[0-9]{2})?)`)

type StockChecker struct {
	client    *http.Client
	config    *Config
	userAgent string
	cookies   []*http.Cookie
}

func NewStockChecker(config *Config) *StockChecker {
	return &StockChecker{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		config:    config,
		userAgent: defaultUserAgent,
	}
}

// UseSession attaches the logged-in browser session so checks ride the same
// cookies and user agent the browser presents. A signed-in fetch sees the same
// buybox the purchase strategies will.
func (sc *StockChecker) UseSession(session *CheckoutSession) {
	if session == nil {
		return
	}
	sc.cookies = session.cookies
	if session.userAgent != "" {
		sc.userAgent = session.userAgent
	}
}

// Check fetches the product page and scrapes it for availability and price.
func (sc *StockChecker) Check(url string) (*StockStatus, error) {
	body, status, err := sc.fetch(url)
	if err != nil {
		return nil, err
	}

	if status == http.StatusServiceUnavailable {
		return nil, errThrottled
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("product page returned HTTP %d", status)
	}

	if isCaptchaPage(body) {
		return nil, errCaptcha
	}

	return parseStockStatus(body, sc.config.Selectors)
}

func (sc *StockChecker) fetch(url string) ([]byte, int, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", sc.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Cache-Control", "max-age=0")

	for _, cookie := range sc.cookies {
		req.AddCookie(cookie)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch product page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read product page: %w", err)
	}

	return body, resp.StatusCode, nil
}

// isCaptchaPage detects Amazon's robot-check interstitial.
func isCaptchaPage(body []byte) bool {
	return bytes.Contains(body, []byte("api-services-support@amazon.com")) ||
		bytes.Contains(body, []byte("Type the characters you see in this image"))
}

// parseStockStatus runs the selector heuristics over fetched HTML.
// Priority: an enabled buy affordance decides stock, the availability text can
// veto it, and price comes from the buybox selectors with an embedded-JSON and
// regex fallback.
func parseStockStatus(body []byte, selectors SelectorConfig) (*StockStatus, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse product page: %w", err)
	}

	status := &StockStatus{}

	buyNow := findEnabled(doc, selectors.BuyNowButton)
	addToCart := findEnabled(doc, selectors.AddToCartButton)

	switch {
	case buyNow:
		status.InStock = true
		status.Reason = "buy-now button present"
	case addToCart:
		status.InStock = true
		status.Reason = "add-to-cart button present"
	default:
		status.Reason = "no enabled buy affordance"
	}

	availability := strings.TrimSpace(doc.Find(selectors.AvailabilityText).First().Text())
	if availability != "" && contains(availability, "unavailable", "out of stock") {
		status.InStock = false
		status.Reason = fmt.Sprintf("availability text: %q", availability)
	}

	if price, ok := extractPrice(doc, selectors.PriceBlock); ok {
		status.Price = price
		status.HavePrice = true
	} else if price, ok := extractEmbeddedPrice(doc); ok {
		status.Price = price
		status.HavePrice = true
	} else if price, ok := extractPriceByRegex(body); ok {
		status.Price = price
		status.HavePrice = true
	}

	return status, nil
}

// findEnabled reports whether any of the comma-separated selectors matches an
// element that is not disabled or hidden behind a disabled wrapper.
func findEnabled(doc *goquery.Document, selectorList string) bool {
	for _, selector := range splitSelectors(selectorList) {
		found := false
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if _, disabled := s.Attr("disabled"); disabled {
				return true
			}
			if class, _ := s.Attr("class"); strings.Contains(class, "a-button-disabled") {
				return true
			}
			found = true
			return false
		})
		if found {
			return true
		}
	}
	return false
}

func splitSelectors(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func extractPrice(doc *goquery.Document, selectorList string) (float64, bool) {
	for _, selector := range splitSelectors(selectorList) {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if price, err := parsePriceString(text); err == nil && price > 0 {
			return price, true
		}
	}
	return 0, false
}

// extractEmbeddedPrice probes the JSON state blobs Amazon inlines into the
// page (twister / buybox data). These survive buybox markup changes longer
// than the visible selectors do.
func extractEmbeddedPrice(doc *goquery.Document) (float64, bool) {
	var price float64
	var found bool

	doc.Find(`script[type="a-state"], script[type="application/json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		blob := s.Text()
		if !gjson.Valid(blob) {
			return true
		}

		for _, path := range []string{
			"priceAmount",
			"desktop_buybox_group_1.0.priceAmount",
			"buyingOptions.0.price.priceToPay.amount",
		} {
			if v := gjson.Get(blob, path); v.Exists() && v.Float() > 0 {
				price = v.Float()
				found = true
				return false
			}
		}
		return true
	})

	return price, found
}

// extractPriceByRegex is the last-ditch heuristic: first dollar amount in the
// raw HTML. Only trusted when nothing structured matched.
func extractPriceByRegex(body []byte) (float64, bool) {
	matches := priceRe.FindSubmatch(body)
	if len(matches) < 2 {
		return 0, false
	}

	price, err := parsePriceString(string(matches[1]))
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}
