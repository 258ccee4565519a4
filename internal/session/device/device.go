// Package device derives display metadata from a login's User-Agent header.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// DisplayName renders a human-readable device label from a raw User-Agent
// string, e.g. "Chrome on macOS". Unknown agents collapse to "Unknown device".
func DisplayName(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown device"
	}

	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	browser = strings.TrimSpace(browser)
	os := strings.TrimSpace(ua.OSInfo().Name)

	switch {
	case browser == "" && os == "":
		return "Unknown device"
	case os == "":
		return browser
	case browser == "":
		return os
	}
	return browser + " on " + os
}
