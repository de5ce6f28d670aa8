package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// signinURL is the full OpenID sign-in URL the retail site itself links to.
// Landing here directly skips one redirect hop on the way to the login form.
const signinURL = "https://www.amazon.com/ap/signin?openid.pape.max_auth_age=0&openid.return_to=https%3A%2F%2Fwww.amazon.com%2F%3Fref_%3Dnav_signin&openid.identity=http%3A%2F%2Fspecs.openid.net%2Fauth%2F2.0%2Fidentifier_select&openid.assoc_handle=usflex&openid.mode=checkid_setup&openid.claimed_id=http%3A%2F%2Fspecs.openid.net%2Fauth%2F2.0%2Fidentifier_select&openid.ns=http%3A%2F%2Fspecs.openid.net%2Fauth%2F2.0"

type Automation struct {
	config   *Config
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	rand     *rand.Rand
	stopChan chan bool
}

func NewAutomation(config *Config) *Automation {
	return &Automation{
		config:   config,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		stopChan: make(chan bool, 1),
	}
}

func (a *Automation) Close() {
	select {
	case a.stopChan <- true:
	default:
	}

	fmt.Println(T("cleaning_up"))

	if a.page != nil {
		a.page.Close()
	}

	if a.browser != nil {
		a.browser.Close()
	}

	if a.launcher != nil {
		a.launcher.Cleanup()
	}

	fmt.Println(T("browser_destroyed"))
}

func (a *Automation) isBrowserAlive() bool {
	if a.browser == nil {
		return false
	}

	_, err := a.browser.Version()
	if err != nil {
		a.debugLog("Browser version check failed: %v", err)
		return false
	}

	if a.page != nil {
		_, err := a.page.Info()
		if err != nil {
			a.debugLog("Page info check failed: %v", err)
			return false
		}
	}

	return true
}

func (a *Automation) checkBrowserOrExit() {
	if !a.isBrowserAlive() {
		fmt.Println(T("browser_closed_by_user"))
		fmt.Println(T("shutting_down"))
		os.Exit(0)
	}
}

func (a *Automation) watchBrowser() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.checkBrowserOrExit()
		}
	}
}

func (a *Automation) debugLog(format string, args ...interface{}) {
	if a.config.DebugMode {
		fmt.Printf("[DEBUG] "+format+"\n", args...)
	}
}

func (a *Automation) setupBrowser() error {
	fmt.Println(T("browser_launching"))

	// Disable leakless mode on Windows to prevent deadlock
	// See: https://github.com/go-rod/rod/issues/853
	useLeakless := runtime.GOOS != "windows"

	chromePath, chromeExists := launcher.LookPath()

	a.launcher = launcher.New().
		Leakless(useLeakless).
		Headless(a.config.Headless)

	// Custom user data dir avoids fighting a running Chrome over the profile.
	if a.config.BrowserProfilePath != "" {
		a.launcher = a.launcher.UserDataDir(a.config.BrowserProfilePath)
	}

	if chromeExists {
		a.launcher = a.launcher.Bin(chromePath)
		fmt.Println(T("browser_using_system_chrome"))
	} else {
		fmt.Println(T("browser_chrome_not_found"))
	}

	url, err := a.launcher.Launch()
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Opening in existing browser session") ||
			strings.Contains(errMsg, "ProcessSingleton") ||
			strings.Contains(errMsg, "SingletonLock") {
			fmt.Println(T("error_chrome_already_running"))
			return fmt.Errorf("chrome is already running, close all Chrome windows and try again")
		}
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	a.browser = rod.New().ControlURL(url).MustConnect()

	a.page, err = stealth.Page(a.browser)
	if err != nil {
		return fmt.Errorf("failed to create stealth page: %w", err)
	}

	err = a.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: defaultUserAgent,
	})
	if err != nil {
		a.debugLog("Warning: Failed to set User-Agent: %v", err)
	}

	err = a.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  a.config.ViewportWidth,
		Height: a.config.ViewportHeight,
	})
	if err != nil {
		a.debugLog("Warning: Failed to set viewport: %v", err)
	}

	go a.watchBrowser()

	fmt.Println(T("browser_launched"))
	return nil
}

// Login signs in to Amazon with typed credentials, handing control to the
// user for 2FA or anything else the sign-in flow throws up.
func (a *Automation) Login(creds *Credentials) error {
	fmt.Println(T("login_starting"))

	if err := a.page.Navigate(signinURL); err != nil {
		return fmt.Errorf("failed to navigate to sign-in: %w", err)
	}
	if err := a.page.WaitLoad(); err != nil {
		return fmt.Errorf("sign-in page failed to load: %w", err)
	}

	if err := a.fillSigninForm(creds); err != nil {
		// Any failure in the scripted flow falls back to a fully manual login.
		fmt.Printf(T("login_error_manual_fallback")+"\n", err)
		fmt.Print(T("login_manual_prompt"))
		if err := a.waitForEnter(); err != nil {
			return err
		}
	}

	if err := a.waitForSignedIn(); err != nil {
		return err
	}

	fmt.Println(T("login_success"))

	// Warm the product page cache while we are here.
	if a.config.ProductURL != "" {
		if err := a.page.Navigate(a.config.ProductURL); err != nil {
			return fmt.Errorf("failed to navigate to product page: %w", err)
		}
		if err := a.page.WaitLoad(); err != nil {
			return fmt.Errorf("product page failed to load: %w", err)
		}
		fmt.Println(T("product_page_loaded"))
	}

	return nil
}

func (a *Automation) fillSigninForm(creds *Credentials) error {
	emailField, err := a.page.Timeout(10 * time.Second).Element("#ap_email")
	if err != nil {
		return fmt.Errorf("email field not found: %w", err)
	}
	if err := a.typeSlowly(emailField, creds.Email); err != nil {
		return fmt.Errorf("failed to enter email: %w", err)
	}

	// Two-page flow has a continue button; the combined form does not.
	if continueBtn, err := a.page.Timeout(5 * time.Second).Element("#continue"); err == nil {
		time.Sleep(500 * time.Millisecond)
		if err := continueBtn.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("failed to click continue: %w", err)
		}
	}

	passwordField, err := a.page.Timeout(10 * time.Second).Element("#ap_password")
	if err != nil {
		return fmt.Errorf("password field not found: %w", err)
	}
	if err := a.typeSlowly(passwordField, creds.Password); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}

	time.Sleep(500 * time.Millisecond)
	signInBtn, err := a.page.Timeout(5 * time.Second).Element("#signInSubmit")
	if err != nil {
		return fmt.Errorf("sign-in button not found: %w", err)
	}
	if err := signInBtn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click sign-in: %w", err)
	}

	// 2FA is never automated. If the OTP field shows up, tell the user and
	// let waitForSignedIn block until they finish in the browser window.
	if _, err := a.page.Timeout(3 * time.Second).Element("#auth-mfa-otpcode"); err == nil {
		fmt.Println(T("login_2fa_header"))
		fmt.Println(T("login_2fa_instructions"))
	}

	return nil
}

// typeSlowly enters text one character at a time with human keystroke pacing.
func (a *Automation) typeSlowly(el *rod.Element, text string) error {
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	for _, char := range text {
		if err := el.Input(string(char)); err != nil {
			return err
		}
		time.Sleep(time.Duration(50+a.rand.Intn(100)) * time.Millisecond)
	}
	return nil
}

// waitForSignedIn polls for the account menu that only renders for a
// signed-in session. Generous deadline: the user may be mid-2FA.
func (a *Automation) waitForSignedIn() error {
	deadline := time.Now().Add(2 * time.Minute)
	notified := false

	for time.Now().Before(deadline) {
		if _, err := a.page.Timeout(2 * time.Second).Element("#nav-link-accountList"); err == nil {
			return nil
		}

		if !notified {
			fmt.Println(T("login_waiting_for_completion"))
			notified = true
		}
		time.Sleep(1 * time.Second)
	}

	return fmt.Errorf("sign-in did not complete within 2 minutes")
}

func (a *Automation) waitForEnter() error {
	reader := bufio.NewReader(os.Stdin)
	for {
		input, err := reader.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if input == '\n' || input == '\r' {
			fmt.Println()
			return nil
		}

		if input == 27 {
			fmt.Println()
			return fmt.Errorf("user canceled operation")
		}
	}
}

// NewProductPage opens a fresh tab on the product URL. Each purchase strategy
// drives its own tab so the racing click sequences cannot stomp each other.
func (a *Automation) NewProductPage() (*rod.Page, error) {
	page, err := stealth.Page(a.browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	timeout := time.Duration(a.config.PageLoadTimeout) * time.Second
	if err := page.Timeout(timeout).Navigate(a.config.ProductURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		page.Close()
		return nil, fmt.Errorf("page failed to load: %w", err)
	}

	return page, nil
}

func contains(s string, substrs ...string) bool {
	s = strings.ToLower(s)
	for _, substr := range substrs {
		if strings.Contains(s, strings.ToLower(substr)) {
			return true
		}
	}
	return false
}
