package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const inStockHTML = `<html><body>
<div id="availability"><span>In Stock</span></div>
<span class="a-price"><span class="a-offscreen">$2,499.99</span></span>
<input id="add-to-cart-button" type="submit" value="Add to Cart"/>
<input id="buy-now-button" type="submit" value="Buy Now"/>
</body></html>`

const outOfStockHTML = `<html><body>
<div id="availability"><span>Currently unavailable.</span></div>
</body></html>`

const disabledButtonHTML = `<html><body>
<input id="buy-now-button" type="submit" disabled value="Buy Now"/>
<span class="a-price"><span class="a-offscreen">$1,999.00</span></span>
</body></html>`

const embeddedPriceHTML = `<html><body>
<input id="add-to-cart-button" type="submit" value="Add to Cart"/>
<script type="a-state">{"priceAmount":2649.00,"currencyCode":"USD"}</script>
</body></html>`

const regexPriceHTML = `<html><body>
<input id="buy-now-button" type="submit" value="Buy Now"/>
<p>Only 3 left at $2,199.99 from these sellers.</p>
</body></html>`

func TestParseStockStatusInStock(t *testing.T) {
	selectors := DefaultConfig().Selectors

	status, err := parseStockStatus([]byte(inStockHTML), selectors)
	if err != nil {
		t.Fatalf("parseStockStatus failed: %v", err)
	}

	if !status.InStock {
		t.Errorf("Expected in stock, got reason %q", status.Reason)
	}
	if !status.HavePrice {
		t.Fatal("Expected a parsed price")
	}
	if status.Price != 2499.99 {
		t.Errorf("Expected price 2499.99, got %f", status.Price)
	}
}

func TestParseStockStatusUnavailable(t *testing.T) {
	selectors := DefaultConfig().Selectors

	status, err := parseStockStatus([]byte(outOfStockHTML), selectors)
	if err != nil {
		t.Fatalf("parseStockStatus failed: %v", err)
	}

	if status.InStock {
		t.Error("Unavailable listing should not be in stock")
	}
}

func TestParseStockStatusDisabledButton(t *testing.T) {
	selectors := DefaultConfig().Selectors

	status, err := parseStockStatus([]byte(disabledButtonHTML), selectors)
	if err != nil {
		t.Fatalf("parseStockStatus failed: %v", err)
	}

	if status.InStock {
		t.Error("A disabled buy button is not an enabled buy affordance")
	}
}

func TestParseStockStatusEmbeddedPrice(t *testing.T) {
	selectors := DefaultConfig().Selectors

	status, err := parseStockStatus([]byte(embeddedPriceHTML), selectors)
	if err != nil {
		t.Fatalf("parseStockStatus failed: %v", err)
	}

	if !status.InStock {
		t.Errorf("Expected in stock, got reason %q", status.Reason)
	}
	if !status.HavePrice || status.Price != 2649.00 {
		t.Errorf("Expected embedded price 2649.00, got %f (have=%v)", status.Price, status.HavePrice)
	}
}

func TestParseStockStatusRegexFallback(t *testing.T) {
	selectors := DefaultConfig().Selectors

	status, err := parseStockStatus([]byte(regexPriceHTML), selectors)
	if err != nil {
		t.Fatalf("parseStockStatus failed: %v", err)
	}

	if !status.HavePrice || status.Price != 2199.99 {
		t.Errorf("Expected regex fallback price 2199.99, got %f (have=%v)", status.Price, status.HavePrice)
	}
}

func TestCheckResponses(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
		inStock    bool
	}{
		{"in stock", http.StatusOK, inStockHTML, nil, true},
		{"out of stock", http.StatusOK, outOfStockHTML, nil, false},
		{"throttled", http.StatusServiceUnavailable, "", errThrottled, false},
		{"captcha", http.StatusOK, "<html>Type the characters you see in this image</html>", errCaptcha, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.statusCode)
				w.Write([]byte(test.body))
			}))
			defer server.Close()

			checker := NewStockChecker(DefaultConfig())
			status, err := checker.Check(server.URL)

			if test.wantErr != nil {
				if err != test.wantErr {
					t.Errorf("Expected %v, got %v", test.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if status.InStock != test.inStock {
				t.Errorf("Expected inStock=%v, got %v (reason %q)", test.inStock, status.InStock, status.Reason)
			}
		})
	}
}

func TestIsCaptchaPage(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected bool
	}{
		{"robot check", "To discuss automated access contact api-services-support@amazon.com", true},
		{"image captcha", "Type the characters you see in this image", true},
		{"normal page", inStockHTML, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if isCaptchaPage([]byte(test.body)) != test.expected {
				t.Errorf("isCaptchaPage = %v, expected %v", !test.expected, test.expected)
			}
		})
	}
}

func TestSplitSelectors(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"#buy-now-button", []string{"#buy-now-button"}},
		{"#a, #b , #c", []string{"#a", "#b", "#c"}},
		{"", nil},
	}

	for _, test := range tests {
		result := splitSelectors(test.input)
		if len(result) != len(test.expected) {
			t.Errorf("splitSelectors(%q) = %v, expected %v", test.input, result, test.expected)
			continue
		}
		for i := range result {
			if result[i] != test.expected[i] {
				t.Errorf("splitSelectors(%q)[%d] = %q, expected %q", test.input, i, result[i], test.expected[i])
			}
		}
	}
}
