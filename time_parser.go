package main

import (
	"fmt"
	"strings"
	"time"
)

// launchTimeFormats are tried in order. Formats without a zone are taken as
// local time.
var launchTimeFormats = []struct {
	layout string
	local  bool
}{
	{layout: time.RFC3339, local: false},
	{layout: "2006-01-02 15:04:05", local: true},
	{layout: "2006-01-02 15:04", local: true},
	{layout: "2006-01-02T15:04:05", local: true},
	{layout: "2006-01-02T15:04", local: true},
}

// ParseLaunchTime turns a user-supplied start time into a time.Time. A
// trailing "UTC" pins the zone; otherwise zoneless inputs are local.
func ParseLaunchTime(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	loc := time.Local
	if trimmed, found := strings.CutSuffix(input, " UTC"); found {
		input = strings.TrimSpace(trimmed)
		loc = time.UTC
	}

	for _, format := range launchTimeFormats {
		var t time.Time
		var err error
		if format.local {
			t, err = time.ParseInLocation(format.layout, input, loc)
		} else {
			t, err = time.Parse(format.layout, input)
		}
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %q (use RFC3339 or \"2006-01-02 15:04\")", input)
}
