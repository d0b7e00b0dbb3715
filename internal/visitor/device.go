package visitor

import (
	"regexp"
	"strings"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
)

// Device is the coarse classification of a user agent
type Device struct {
	Class   string `json:"device"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
}

var (
	mobilePattern = regexp.MustCompile(`(?i)mobi|android`)
	tabletPattern = regexp.MustCompile(`(?i)tablet|ipad`)
)

type rule struct {
	name    string
	matches func(ua string) bool
}

func contains(subs ...string) func(string) bool {
	return func(ua string) bool {
		for _, s := range subs {
			if strings.Contains(ua, s) {
				return true
			}
		}
		return false
	}
}

// Order matters: Chromium derivatives carry "Chrome", every Chromium and
// Apple browser carries "Safari", and Android/iOS agents also name Linux or Mac OS.
var (
	browserRules = []rule{
		{"Edge", contains("Edg/", "EdgA/", "EdgiOS/", "Edge/")},
		{"Opera", contains("OPR/", "Opera", "OPiOS/")},
		{"Firefox", contains("Firefox/", "FxiOS/")},
		{"Chrome", contains("Chrome/", "CriOS/")},
		{"Safari", contains("Safari/")},
	}
	osRules = []rule{
		{"Windows", contains("Windows")},
		{"Android", contains("Android")},
		{"iOS", contains("iPhone", "iPad", "iPod")},
		{"macOS", contains("Mac OS", "Macintosh")},
		{"Linux", contains("Linux", "X11")},
	}
)

// Classify derives device class, browser family and OS family from a user agent.
// Anything unrecognised is reported as cnst.Unknown; the device class falls back to desktop.
func Classify(userAgent string) Device {
	return Device{
		Class:   deviceClass(userAgent),
		Browser: firstMatch(browserRules, userAgent),
		OS:      firstMatch(osRules, userAgent),
	}
}

func deviceClass(ua string) string {
	switch {
	case mobilePattern.MatchString(ua):
		return cnst.DeviceMobile
	case tabletPattern.MatchString(ua):
		return cnst.DeviceTablet
	default:
		return cnst.DeviceDesktop
	}
}

func firstMatch(rules []rule, ua string) string {
	for _, r := range rules {
		if r.matches(ua) {
			return r.name
		}
	}
	return cnst.Unknown
}

// IsMobile reports whether class counts as a handheld device
func IsMobile(class string) bool {
	return class == cnst.DeviceMobile || class == cnst.DeviceTablet
}
