// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple category", "Tournaments", "tournaments"},
		{"trailing space and case", "  tournaments ", "tournaments"},
		{"two words", "Club News", "club-news"},
		{"special characters", "AGM & Dinner!", "agm-dinner"},
		{"accents", "Café résumé", "cafe-resume"},
		{"german umlauts", "Über München", "uber-munchen"},
		{"cyrillic", "Турнир", "turnir"},
		{"tabs and newlines", "Junior\t\nOpen", "junior-open"},
		{"all special characters", "!@#$%^&*()", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"tournaments", true},
		{"club-news-2024", true},
		{"", false},
		{"-lead", false},
		{"trail-", false},
		{"double--hyphen", false},
		{"Upper", false},
	}

	for _, tt := range tests {
		if got := IsValidSlug(tt.slug); got != tt.want {
			t.Errorf("IsValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
		}
	}
}

func TestCleanLabel(t *testing.T) {
	if got := CleanLabel("  Annual   General\tMeeting "); got != "Annual General Meeting" {
		t.Errorf("CleanLabel() = %q", got)
	}
}
