// Package browser opens the sign-in page in the user's browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Open starts the platform browser on rawURL without waiting for it.
// Only http and https URLs are accepted.
func Open(rawURL string) error {
	name, args, err := Command(runtime.GOOS, rawURL)
	if err != nil {
		return err
	}
	return exec.Command(name, args...).Start() // #nosec G204 -- URL validated in Command
}

// Command returns the program and arguments that open rawURL on goos.
func Command(goos, rawURL string) (string, []string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", nil, fmt.Errorf("unsupported URL scheme: %q (only http and https allowed)", u.Scheme)
	}
	if u.Host == "" {
		return "", nil, fmt.Errorf("invalid URL: missing host in %q", rawURL)
	}

	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{rawURL}, nil
	case "darwin":
		return "open", []string{rawURL}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
