package util

import (
	"strings"
	"testing"
)

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "clean string",
			input:    "TRUCK-01",
			expected: "TRUCK-01",
		},
		{
			name:     "string with carriage return and newline",
			input:    "Hello\r\nWorld",
			expected: "Hello World",
		},
		{
			name:     "string with control characters",
			input:    "Hello\x00\x01\x1FWorld",
			expected: "Hello World",
		},
		{
			name:     "string with DEL character (0x7F)",
			input:    "Hello\x7FWorld",
			expected: "Hello World",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeForLog(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeForLog(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "report.pdf", expected: "report.pdf"},
		{name: "spaces", input: "boom test 2024.pdf", expected: "boom_test_2024.pdf"},
		{name: "unix traversal", input: "../../etc/passwd", expected: "passwd"},
		{name: "windows path", input: `C:\Users\me\scan.jpg`, expected: "scan.jpg"},
		{name: "hidden file", input: ".env", expected: "env"},
		{name: "empty", input: "", expected: "file"},
		{name: "only unsafe", input: "???", expected: "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeFileName(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeFileName_Truncates(t *testing.T) {
	long := strings.Repeat("a", 150) + ".pdf"
	got := SanitizeFileName(long)
	if len(got) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(got))
	}
	if !strings.HasSuffix(got, ".pdf") {
		t.Fatalf("expected extension to survive truncation, got %q", got)
	}
}
