package main

import (
	"fmt"
	"strings"
	"time"
)

var logoLines = []string{
	`  ____  _   _ ___ ____  _____ ____  `,
	` / ___|| \ | |_ _|  _ \| ____|  _ \ `,
	` \___ \|  \| || || |_) |  _| | |_) |`,
	`  ___) | |\  || ||  __/| |___|  _ < `,
	` |____/|_| \_|___|_|   |_____|_| \_\`,
	``,
	`       high-value item sniper       `,
}

// printBanner reveals the logo a line at a time. Purely cosmetic, skipped in
// debug mode to keep logs clean.
func printBanner(config *Config) {
	if !config.DebugMode {
		for _, line := range logoLines {
			fmt.Println(line)
			time.Sleep(60 * time.Millisecond)
		}
		fmt.Println()
	}

	printSettingsBox(config)
}

func printSettingsBox(config *Config) {
	mode := T("banner_mode_live")
	if config.DryRun {
		mode = T("banner_mode_dry_run")
	}

	rows := []string{
		fmt.Sprintf(T("banner_row_target"), truncateURL(config.ProductURL, 48)),
		fmt.Sprintf(T("banner_row_ceiling"), config.MaxPrice),
		fmt.Sprintf(T("banner_row_mode"), mode),
		fmt.Sprintf(T("banner_row_window"), config.PurchaseWindowSeconds),
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	border := "+" + strings.Repeat("-", width+2) + "+"
	fmt.Println(border)
	for _, row := range rows {
		fmt.Printf("| %-*s |\n", width, row)
	}
	fmt.Println(border)
	fmt.Println()
}

func truncateURL(url string, max int) string {
	if len(url) <= max {
		return url
	}
	return url[:max-3] + "..."
}
