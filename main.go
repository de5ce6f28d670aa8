package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

func getUserDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./sniper-data"
	}
	return filepath.Join(home, ".sniper")
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	productURL := flag.String("url", "", "product URL to watch (overrides config)")
	maxPrice := flag.Float64("max-price", 0, "price ceiling in dollars (overrides config)")
	dryRun := flag.Bool("dry-run", false, "run the full flow but stop before placing the order")
	debugMode := flag.Bool("debug", false, "enable debug logging")
	headless := flag.Bool("headless", false, "run the browser without a window")
	startAt := flag.String("start-at", "", "wait until this time before monitoring (RFC3339 or \"2006-01-02 15:04\")")
	once := flag.Bool("once", false, "perform a single stock check and exit")
	flag.Parse()

	InitLocale()

	config, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Printf(T("error_config_load")+"\n", err)
		os.Exit(1)
	}

	if err := EnsureEnvFile(".env"); err != nil {
		fmt.Printf(T("error_env_setup")+"\n", err)
		os.Exit(1)
	}

	creds, err := LoadEnv(".env", config)
	if err != nil {
		fmt.Printf(T("error_env_load")+"\n", err)
		os.Exit(1)
	}

	// Flags win over both config.yaml and .env. Only flags the user actually
	// passed are applied, so defaults never clobber the config.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			config.ProductURL = *productURL
		case "max-price":
			config.MaxPrice = *maxPrice
		case "dry-run":
			config.DryRun = *dryRun
		case "debug":
			config.DebugMode = *debugMode
		case "headless":
			config.Headless = *headless
		case "start-at":
			config.StartAt = *startAt
		}
	})

	if config.ProductURL == "" {
		fmt.Println(T("error_no_product_url"))
		os.Exit(1)
	}

	printBanner(config)

	record, err := LoadPurchaseRecord(config.PurchaseRecordPath)
	if err != nil {
		fmt.Printf(T("error_record_load")+"\n", err)
		os.Exit(1)
	}

	// Record timestamps ride the synced clock once a sync has happened;
	// until then TimeSync.Now falls back to local time.
	timeSync := NewTimeSync()
	record.now = timeSync.Now

	// One-shot stock checks are pure HTTP, no browser needed.
	if *once {
		checker := NewStockChecker(config)
		monitor := NewMonitor(config, checker, nil, record, timeSync)
		if err := monitor.Run(true); err != nil {
			fmt.Printf(T("error_monitor")+"\n", err)
			os.Exit(1)
		}
		return
	}

	automation := NewAutomation(config)
	if err := automation.setupBrowser(); err != nil {
		fmt.Printf(T("error_browser_setup")+"\n", err)
		os.Exit(1)
	}

	if err := automation.Login(creds); err != nil {
		fmt.Printf(T("error_login")+"\n", err)
		automation.Close()
		os.Exit(1)
	}

	session, err := NewCheckoutSession(config)
	if err != nil {
		fmt.Printf(T("error_session")+"\n", err)
		automation.Close()
		os.Exit(1)
	}
	if err := session.LoadFromBrowser(automation); err != nil {
		fmt.Printf(T("error_session")+"\n", err)
		automation.Close()
		os.Exit(1)
	}

	checker := NewStockChecker(config)
	checker.UseSession(session)

	engine := NewPurchaseEngine(config, automation, session, record)
	monitor := NewMonitor(config, checker, engine, record, timeSync)

	go handleInterrupts(monitor, automation)

	err = monitor.Run(false)
	if err != nil {
		fmt.Printf(T("error_monitor")+"\n", err)
		automation.Close()
		os.Exit(1)
	}

	if config.KeepBrowserOpen {
		// Leave the browser up so the user can verify the order themselves.
		// The interrupt handler owns shutdown from here.
		fmt.Println(T("keep_browser_open"))
		select {}
	}

	automation.Close()
}

// interruptGate tracks the two-stage exit window. The first interrupt arms
// it, and only a second one inside the window confirms the exit; a late
// second interrupt re-arms instead.
type interruptGate struct {
	window time.Duration
	last   time.Time
}

func (g *interruptGate) confirmed(now time.Time) bool {
	if !g.last.IsZero() && now.Sub(g.last) <= g.window {
		return true
	}
	g.last = now
	return false
}

// handleInterrupts implements the two-stage exit: the first Ctrl-C only
// warns and the run keeps going, a second within 3 seconds shuts down.
func handleInterrupts(monitor *Monitor, automation *Automation) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	gate := &interruptGate{window: 3 * time.Second}

	for range sigChan {
		if gate.confirmed(time.Now()) {
			fmt.Println()
			fmt.Println(T("shutting_down"))
			monitor.Stop()
			automation.Close()
			os.Exit(0)
		}

		fmt.Println()
		fmt.Println(T("interrupt_warning"))
	}
}
