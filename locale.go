package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// builtinMessages is the en_US catalog compiled into the binary. Any key
// missing from a loaded override falls back here, and a missing key falls
// back to the key itself so a typo shows up in the output instead of hiding.
var builtinMessages = map[string]string{
	"banner_mode_live":    "LIVE",
	"banner_mode_dry_run": "DRY RUN (stops before placing the order)",
	"banner_row_target":   "Target:  %s",
	"banner_row_ceiling":  "Ceiling: $%.2f",
	"banner_row_mode":     "Mode:    %s",
	"banner_row_window":   "Window:  %d seconds",

	"env_first_run_header":   "First run: let's set up your credentials (.env)",
	"env_prompt_email":       "Amazon account email: ",
	"env_prompt_password":    "Amazon account password: ",
	"env_prompt_max_price":   "Price ceiling in dollars (blank for 2800.00): ",
	"env_prompt_product_url": "Product URL to watch: ",

	"browser_launching":           "Launching browser...",
	"browser_launched":            "Browser ready",
	"browser_using_system_chrome": "Using system Chrome",
	"browser_chrome_not_found":    "System Chrome not found, downloading a managed browser",
	"browser_closed_by_user":      "Browser window was closed",
	"browser_destroyed":           "Browser closed",
	"cleaning_up":                 "Cleaning up...",
	"keep_browser_open":           "Leaving the browser open so you can verify the order. Press Ctrl+C to exit.",

	"login_starting":               "Signing in...",
	"login_success":                "Signed in",
	"login_2fa_header":             "=== TWO-FACTOR CODE REQUIRED ===",
	"login_2fa_instructions":       "Enter the code in the browser window. Waiting for you to finish...",
	"login_waiting_for_completion": "Waiting for sign-in to complete in the browser...",
	"login_error_manual_fallback":  "Automated sign-in failed (%v), falling back to manual login",
	"login_manual_prompt":          "Sign in in the browser window, then press Enter here: ",
	"product_page_loaded":          "Product page loaded",

	"session_extracting":        "Extracting session from browser...",
	"session_cookies_extracted": "Extracted %d cookies",
	"session_csrf_extracted":    "CSRF token captured",
	"session_csrf_not_found":    "No CSRF token on this page, turbo checkout may be rejected",

	"monitor_already_purchased":   "This item was already purchased (%s at %s). Delete purchase_record.json or set skip_purchase_record to buy again.",
	"monitor_waiting_until":       "Waiting until %s (%s from now)",
	"monitor_countdown":           "Starting in %s",
	"monitor_start_time_reached":  "Start time reached, monitoring now",
	"monitor_start_time_passed":   "Start time is already past, monitoring now",
	"monitor_status_in_stock":     "[check %d] in stock at $%.2f",
	"monitor_status_out_of_stock": "[check %d] not buyable: %s",
	"monitor_in_stock_no_price":   "[check %d] in stock but no price found, holding fire",
	"monitor_over_ceiling":        "In stock at $%.2f, over the $%.2f ceiling",
	"monitor_throttled":           "[check %d] throttled (503), backing off",
	"monitor_captcha":             "[check %d] captcha wall, backing off hard",
	"monitor_target_acquired":     "TARGET: in stock at $%.2f (ceiling $%.2f) after %d checks",
	"monitor_purchase_complete":   "ORDER PLACED via %s",
	"monitor_record_save_failed":  "Warning: could not save purchase record: %v",

	"purchase_window_open":  "Purchase window open: racing %d strategies for %s",
	"purchase_strategy_won": "[%s] order completed on attempt %d",
	"purchase_dry_run_stop": "DRY RUN: stopping before the final order step",
	"retry_network_error":   "%s: network error, attempt %d, retrying in %dms",

	"timesync_synced": "Clock synced to server time (offset %v from %d sources)",
	"timesync_failed": "Time sync failed (%v), using local clock",

	"interrupt_warning": "Press Ctrl+C again within 3 seconds to exit",
	"shutting_down":     "Shutting down",

	"error_config_load":            "Failed to load config: %v",
	"error_env_setup":              "Failed to set up .env: %v",
	"error_env_load":               "Failed to load credentials: %v",
	"error_no_product_url":         "No product URL. Set PRODUCT_URL in .env, product_url in config.yaml, or pass -url.",
	"error_record_load":            "Failed to load purchase record: %v",
	"error_browser_setup":          "Failed to start browser: %v",
	"error_login":                  "Sign-in failed: %v",
	"error_session":                "Failed to build checkout session: %v",
	"error_monitor":                "Monitor stopped with error: %v",
	"error_chrome_already_running": "Chrome is already running with this profile. Close all Chrome windows and try again.",
}

var messages = builtinMessages

// InitLocale loads an override catalog for the detected locale when one
// exists next to the executable, e.g. lang/de_DE.yaml. English needs no file.
func InitLocale() {
	locale := DetectSystemLocale()
	if locale == "" || strings.HasPrefix(locale, "en") {
		return
	}

	loaded, err := loadLocaleFile(locale)
	if err != nil {
		return
	}

	merged := make(map[string]string, len(builtinMessages))
	for k, v := range builtinMessages {
		merged[k] = v
	}
	for k, v := range loaded {
		merged[k] = v
	}
	messages = merged
}

// DetectSystemLocale reads the usual POSIX locale variables and normalizes
// the result to ll_CC form.
func DetectSystemLocale() string {
	for _, envVar := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		value := os.Getenv(envVar)
		if value == "" || value == "C" || value == "POSIX" {
			continue
		}

		// Strip encoding and modifier: "de_DE.UTF-8@euro" -> "de_DE"
		if idx := strings.IndexAny(value, ".@"); idx != -1 {
			value = value[:idx]
		}
		return value
	}
	return ""
}

func loadLocaleFile(locale string) (map[string]string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(filepath.Dir(exePath), "lang", locale+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	loaded := make(map[string]string)
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, err
	}
	return loaded, nil
}

// T looks up a message by key and formats it with the given arguments.
func T(key string, args ...interface{}) string {
	msg, ok := messages[key]
	if !ok {
		msg = key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
