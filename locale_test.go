package main

import (
	"strings"
	"testing"
)

func TestTranslationLookup(t *testing.T) {
	msg := T("shutting_down")
	if msg == "shutting_down" {
		t.Error("Known key should resolve to a message, not the key")
	}
}

func TestTranslationFormatting(t *testing.T) {
	msg := T("session_cookies_extracted", 12)
	if !strings.Contains(msg, "12") {
		t.Errorf("Formatted message should contain the argument, got %q", msg)
	}
}

func TestTranslationUnknownKey(t *testing.T) {
	if msg := T("no_such_key_anywhere"); msg != "no_such_key_anywhere" {
		t.Errorf("Unknown key should fall back to the key itself, got %q", msg)
	}
}

func TestDetectSystemLocale(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected string
	}{
		{
			name:     "LANG with encoding",
			env:      map[string]string{"LANG": "de_DE.UTF-8"},
			expected: "de_DE",
		},
		{
			name:     "LC_ALL wins over LANG",
			env:      map[string]string{"LC_ALL": "fr_FR", "LANG": "de_DE.UTF-8"},
			expected: "fr_FR",
		},
		{
			name:     "modifier stripped",
			env:      map[string]string{"LANG": "de_DE@euro"},
			expected: "de_DE",
		},
		{
			name:     "C locale ignored",
			env:      map[string]string{"LANG": "C"},
			expected: "",
		},
		{
			name:     "nothing set",
			env:      map[string]string{},
			expected: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			for _, v := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
				t.Setenv(v, "")
			}
			for k, v := range test.env {
				t.Setenv(k, v)
			}

			if result := DetectSystemLocale(); result != test.expected {
				t.Errorf("DetectSystemLocale() = %q, expected %q", result, test.expected)
			}
		})
	}
}
