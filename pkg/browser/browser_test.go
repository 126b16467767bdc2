package browser

import (
	"slices"
	"strings"
	"testing"
)

func TestCommand_PerPlatform(t *testing.T) {
	const page = "https://microsoft.com/devicelogin"
	tests := []struct {
		goos string
		name string
		args []string
	}{
		{"linux", "xdg-open", []string{page}},
		{"freebsd", "xdg-open", []string{page}},
		{"darwin", "open", []string{page}},
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", page}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args, err := Command(tt.goos, page)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if name != tt.name || !slices.Equal(args, tt.args) {
				t.Errorf("got %s %v, want %s %v", name, args, tt.name, tt.args)
			}
		})
	}
}

func TestCommand_UnsupportedPlatform(t *testing.T) {
	_, _, err := Command("plan9", "https://example.com")
	if err == nil || !strings.Contains(err.Error(), "unsupported platform") {
		t.Errorf("expected unsupported platform error, got %v", err)
	}
}

func TestCommand_RejectsInvalidScheme(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"file scheme", "file:///etc/passwd"},
		{"javascript scheme", "javascript:alert(1)"},
		{"data scheme", "data:text/html,<script>alert(1)</script>"},
		{"ftp scheme", "ftp://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Command("linux", tt.url)
			if err == nil || !strings.Contains(err.Error(), "unsupported URL scheme") {
				t.Errorf("should reject %s, got %v", tt.url, err)
			}
		})
	}
}

func TestCommand_RejectsMissingHost(t *testing.T) {
	if _, _, err := Command("linux", "https:///devicelogin"); err == nil {
		t.Error("URL without host should be rejected")
	}
}

func TestCommand_RejectsUnparseableURL(t *testing.T) {
	if _, _, err := Command("linux", "http://[::1"); err == nil {
		t.Error("unparseable URL should be rejected")
	}
}

func TestOpen_RejectsInvalidScheme(t *testing.T) {
	if err := Open("file:///etc/passwd"); err == nil {
		t.Error("Open should reject file URLs")
	}
}
