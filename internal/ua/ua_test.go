package ua

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want Summary
	}{
		{
			name: "empty string",
			raw:  "",
			want: Summary{},
		},
		{
			name: "chrome on windows",
			raw:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			want: Summary{OS: "Windows", Browser: "Chrome"},
		},
		{
			name: "chrome on a samsung phone",
			raw:  "Mozilla/5.0 (Linux; Android 14; SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36",
			want: Summary{OS: "Android", Browser: "Chrome", DeviceVendor: "Samsung", DeviceModel: "SM-G991B"},
		},
		{
			name: "chrome reduced user agent hides the model",
			raw:  "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36",
			want: Summary{OS: "Android", Browser: "Chrome"},
		},
		{
			name: "older android with build suffix",
			raw:  "Mozilla/5.0 (Linux; Android 9; SM-G960F Build/PPR1.180610.011) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/74.0.3729.157 Mobile Safari/537.36",
			want: Summary{OS: "Android", Browser: "Chrome", DeviceVendor: "Samsung", DeviceModel: "SM-G960F"},
		},
		{
			name: "pixel maps to google",
			raw:  "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36",
			want: Summary{OS: "Android", Browser: "Chrome", DeviceVendor: "Google", DeviceModel: "Pixel 8"},
		},
		{
			name: "samsung internet before the chrome token",
			raw:  "Mozilla/5.0 (Linux; Android 14; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/25.0 Chrome/121.0.0.0 Mobile Safari/537.36",
			want: Summary{OS: "Android", Browser: "Samsung Internet", DeviceVendor: "Samsung", DeviceModel: "SM-S918B"},
		},
		{
			name: "edge before the chrome token",
			raw:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0",
			want: Summary{OS: "Windows", Browser: "Edge"},
		},
		{
			name: "safari on iphone",
			raw:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
			want: Summary{OS: "iOS", Browser: "Safari", DeviceVendor: "Apple", DeviceModel: "iPhone"},
		},
		{
			name: "chrome on ipad",
			raw:  "Mozilla/5.0 (iPad; CPU OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/126.0.6478.54 Mobile/15E148 Safari/604.1",
			want: Summary{OS: "iOS", Browser: "Chrome", DeviceVendor: "Apple", DeviceModel: "iPad"},
		},
		{
			name: "safari on macos",
			raw:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
			want: Summary{OS: "macOS", Browser: "Safari", DeviceVendor: "Apple"},
		},
		{
			name: "firefox on linux",
			raw:  "Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
			want: Summary{OS: "Linux", Browser: "Firefox"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Parse(tc.raw))
		})
	}
}

func TestCleanModel(t *testing.T) {
	assert.Equal(t, "SM-G960F", cleanModel("SM-G960F Build/PPR1.180610.011"))
	assert.Equal(t, "Pixel 8", cleanModel(" Pixel 8 "))
	assert.Equal(t, "", cleanModel("K"))
}
