package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ProductURL string  `yaml:"product_url"`
	MaxPrice   float64 `yaml:"max_price"`

	BrowserProfilePath string `yaml:"browser_profile_path"`

	PageLoadTimeout int `yaml:"page_load_timeout"`

	PollDelayMinMs int `yaml:"poll_delay_min_ms"`
	PollDelayMaxMs int `yaml:"poll_delay_max_ms"`

	PurchaseWindowSeconds int `yaml:"purchase_window_seconds"`

	ThrottleDelayMinMs  int `yaml:"throttle_delay_min_ms"`
	ThrottleDelayMaxMs  int `yaml:"throttle_delay_max_ms"`
	CaptchaDelayMs      int `yaml:"captcha_delay_ms"`
	OutOfStockDelayMs   int `yaml:"out_of_stock_delay_ms"`
	GenericErrorDelayMs int `yaml:"generic_error_delay_ms"`

	StartAt string `yaml:"start_at"`

	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`

	PurchaseRecordPath string `yaml:"purchase_record_path"`
	SkipPurchaseRecord bool   `yaml:"skip_purchase_record"`

	Headless        bool `yaml:"headless"`
	KeepBrowserOpen bool `yaml:"keep_browser_open"`

	DryRun    bool `yaml:"dry_run"`
	DebugMode bool `yaml:"debug_mode"`

	Selectors SelectorConfig `yaml:"selectors"`
}

// SelectorConfig carries the DOM affordances the bot scrapes and clicks.
// Amazon rotates these without notice, so they are config, not code.
type SelectorConfig struct {
	BuyNowButton      string `yaml:"buy_now_button"`
	AddToCartButton   string `yaml:"add_to_cart_button"`
	ProceedToCheckout string `yaml:"proceed_to_checkout"`
	PlaceOrderButton  string `yaml:"place_order_button"`
	AvailabilityText  string `yaml:"availability_text"`
	PriceBlock        string `yaml:"price_block"`
	OrderConfirmation string `yaml:"order_confirmation"`
}

// Credentials never touch config.yaml. They live in .env only, under the
// AMAZON_EMAIL / AMAZON_PASSWORD names the bot has used since the first revision.
type Credentials struct {
	Email    string
	Password string
}

func DefaultConfig() *Config {
	userDataDir := getUserDataDir()

	return &Config{
		ProductURL:            "",
		MaxPrice:              2800.00,
		BrowserProfilePath:    filepath.Join(userDataDir, "browser-profile"),
		PageLoadTimeout:       15,
		PollDelayMinMs:        300,
		PollDelayMaxMs:        900,
		PurchaseWindowSeconds: 120,
		ThrottleDelayMinMs:    2000,
		ThrottleDelayMaxMs:    5000,
		CaptchaDelayMs:        10000,
		OutOfStockDelayMs:     500,
		GenericErrorDelayMs:   250,
		StartAt:               "",
		ViewportWidth:         1920,
		ViewportHeight:        1080,
		PurchaseRecordPath:    "purchase_record.json",
		SkipPurchaseRecord:    false,
		Headless:              false,
		KeepBrowserOpen:       true,
		DryRun:                false,
		DebugMode:             false,
		Selectors: SelectorConfig{
			BuyNowButton:      "#buy-now-button, input[name='submit.buy-now']",
			AddToCartButton:   "#add-to-cart-button, input[name='submit.add-to-cart']",
			ProceedToCheckout: "#sc-buy-box-ptc-button, input[name='proceedToRetailCheckout']",
			PlaceOrderButton:  "#placeYourOrder, input[name='placeYourOrder1'], #turbo-checkout-pyo-button",
			AvailabilityText:  "#availability span, #availability",
			PriceBlock:        "#corePrice_feature_div span.a-price span.a-offscreen, span.a-price span.a-offscreen, #priceblock_ourprice, #priceblock_dealprice",
			OrderConfirmation: "#widget-purchaseConfirmationStatus, h1.a-size-large",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if config.BrowserProfilePath != "" {
		if err := os.MkdirAll(config.BrowserProfilePath, 0755); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// EnsureEnvFile writes .env from interactive input when none exists.
func EnsureEnvFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	fmt.Println(T("env_first_run_header"))
	reader := bufio.NewReader(os.Stdin)

	email, err := promptLine(reader, T("env_prompt_email"))
	if err != nil {
		return err
	}
	password, err := promptLine(reader, T("env_prompt_password"))
	if err != nil {
		return err
	}
	maxPrice, err := promptLine(reader, T("env_prompt_max_price"))
	if err != nil {
		return err
	}
	if maxPrice == "" {
		maxPrice = "2800.00"
	}
	productURL, err := promptLine(reader, T("env_prompt_product_url"))
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "AMAZON_EMAIL=%s\n", email)
	fmt.Fprintf(&b, "AMAZON_PASSWORD=%s\n", password)
	fmt.Fprintf(&b, "MAX_PRICE=%s\n", maxPrice)
	fmt.Fprintf(&b, "PRODUCT_URL=%s\n", productURL)

	// Credentials file: keep it out of other users' reach.
	return os.WriteFile(path, []byte(b.String()), 0600)
}

func promptLine(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// LoadEnv loads .env and folds PRODUCT_URL / MAX_PRICE into the config.
// Environment wins over config.yaml so editing .env is enough to retarget the bot.
func LoadEnv(path string, config *Config) (*Credentials, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	creds := &Credentials{
		Email:    os.Getenv("AMAZON_EMAIL"),
		Password: os.Getenv("AMAZON_PASSWORD"),
	}

	if url := os.Getenv("PRODUCT_URL"); url != "" {
		config.ProductURL = url
	}

	if priceStr := os.Getenv("MAX_PRICE"); priceStr != "" {
		price, err := parsePriceString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_PRICE %q: %w", priceStr, err)
		}
		config.MaxPrice = price
	}

	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("AMAZON_EMAIL and AMAZON_PASSWORD must be set in %s", path)
	}

	return creds, nil
}

// parsePriceString accepts the forms people actually type into .env:
// "2800", "2800.00", "$2,800.00".
func parsePriceString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}
