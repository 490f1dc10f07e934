package service

import (
	"strings"

	"github.com/mssola/useragent"
)

// parseUserAgent derives the device and browser fields from a raw User-Agent
// header. An absent or unparseable header leaves both empty; client context
// is optional everywhere.
func parseUserAgent(ua string) (device, browser string) {
	if ua == "" {
		return "", ""
	}

	parsed := useragent.New(ua)

	name, version := parsed.Browser()
	browser = strings.TrimSpace(name + " " + version)

	switch {
	case parsed.Bot():
		device = "bot"
	case parsed.Mobile():
		device = "mobile"
	default:
		device = "desktop"
	}
	if os := parsed.OS(); os != "" {
		device = device + " (" + os + ")"
	}
	return device, browser
}
