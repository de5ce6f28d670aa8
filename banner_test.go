package main

import "testing"

func TestTruncateURL(t *testing.T) {
	tests := []struct {
		input    string
		max      int
		expected string
	}{
		{"https://a.com/dp/B01", 48, "https://a.com/dp/B01"},
		{"https://www.amazon.com/Very-Long-Product-Name-Here/dp/B0ABCDEF12", 20, "https://www.amazo..."},
		{"", 10, ""},
	}

	for _, test := range tests {
		if result := truncateURL(test.input, test.max); result != test.expected {
			t.Errorf("truncateURL(%q, %d) = %q, expected %q", test.input, test.max, result, test.expected)
		}
	}
}
