// Package ua reduces a raw User-Agent string to a coarse,
// privacy-preserving summary: OS family, browser family and device
// vendor/model. The summary helps the user recognize which device a
// registration belongs to; it is never consulted by reconciliation.
package ua

import (
	"regexp"
	"strings"
)

// Summary is the coarse device description stored on a registration.
type Summary struct {
	OS           string
	Browser      string
	DeviceVendor string
	DeviceModel  string
}

var androidModelRe = regexp.MustCompile(`Android [\d.]+; ([^;)]+)[;)]`)

type match struct {
	needle string
	name   string
}

// Ordered: more specific families first. Chrome's token appears inside
// Edge and Opera UAs, Safari's inside Chrome's.
var browserMatches = []match{
	{"Edg/", "Edge"},
	{"OPR/", "Opera"},
	{"SamsungBrowser/", "Samsung Internet"},
	{"Firefox/", "Firefox"},
	{"Chrome/", "Chrome"},
	{"CriOS/", "Chrome"},
	{"FxiOS/", "Firefox"},
	{"Safari/", "Safari"},
}

var osMatches = []match{
	{"Windows NT", "Windows"},
	{"Android", "Android"},
	{"iPhone OS", "iOS"},
	{"iPad", "iOS"},
	{"CPU OS", "iOS"},
	{"Mac OS X", "macOS"},
	{"CrOS", "ChromeOS"},
	{"Linux", "Linux"},
}

var vendorModels = []struct {
	prefix string
	vendor string
}{
	{"SM-", "Samsung"},
	{"Pixel", "Google"},
	{"Redmi", "Xiaomi"},
	{"Mi ", "Xiaomi"},
	{"ONEPLUS", "OnePlus"},
	{"FP", "Fairphone"},
	{"moto", "Motorola"},
	{"HUAWEI", "Huawei"},
}

// Parse extracts the summary from a raw User-Agent string. Unrecognized
// parts are left empty rather than guessed.
func Parse(raw string) Summary {
	s := Summary{}
	if raw == "" {
		return s
	}

	for _, m := range osMatches {
		if strings.Contains(raw, m.needle) {
			s.OS = m.name
			break
		}
	}

	for _, m := range browserMatches {
		if strings.Contains(raw, m.needle) {
			s.Browser = m.name
			break
		}
	}

	switch s.OS {
	case "Android":
		if groups := androidModelRe.FindStringSubmatch(raw); len(groups) == 2 {
			s.DeviceModel = cleanModel(groups[1])
			s.DeviceVendor = vendorFor(s.DeviceModel)
		}
	case "iOS":
		if strings.Contains(raw, "iPad") {
			s.DeviceModel = "iPad"
		} else {
			s.DeviceModel = "iPhone"
		}
		s.DeviceVendor = "Apple"
	case "macOS":
		s.DeviceVendor = "Apple"
	}

	return s
}

// cleanModel strips locale prefixes and build suffixes that some Android
// browsers leave in the device segment.
func cleanModel(seg string) string {
	seg = strings.TrimSpace(seg)
	// A leading locale like "en-us; SM-G991B" may precede the model.
	if i := strings.LastIndex(seg, "; "); i >= 0 {
		seg = seg[i+2:]
	}
	if i := strings.Index(seg, " Build"); i >= 0 {
		seg = seg[:i]
	}
	// Chrome on Android reports the generic placeholder "K".
	if seg == "K" {
		return ""
	}
	return seg
}

func vendorFor(model string) string {
	for _, vm := range vendorModels {
		if strings.HasPrefix(model, vm.prefix) {
			return vm.vendor
		}
	}
	return ""
}
