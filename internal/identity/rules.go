// Package identity resolves who a scanned MAC address belongs to:
// manufacturer from the OUI prefix, hostname and IP from out-of-band
// network hints, and a coarse device category from both.
package identity

import (
	"strings"

	"github.com/banshee-data/presence.report/internal/track"
)

// A rule maps substring keywords to a device category. Rules are
// evaluated in order and the first match wins, so more specific
// categories must precede broader ones. Keywords stay specific for the
// same reason: a bare "apple" on the iPhone rule would claim every
// iPad, MacBook, and Apple TV hostname before their own rules ran.
type rule struct {
	category string
	keywords []string
}

var deviceTypeRules = []rule{
	{"iPhone", []string{"iphone"}},
	{"iPad", []string{"ipad"}},
	{"MacBook", []string{"macbook", "mac book"}},
	{"Android Phone", []string{"android", "samsung", "pixel", "oneplus"}},
	{"Smart TV", []string{"tv", "roku", "firetv", "chromecast", "appletv"}},
	{"Gaming Console", []string{"playstation", "ps4", "ps5", "xbox", "nintendo"}},
	{"Smart Speaker", []string{"echo", "alexa", "homepod", "google home"}},
	{"Laptop", []string{"laptop", "notebook", "thinkpad", "dell", "hp", "lenovo"}},
	{"Desktop", []string{"desktop", "pc", "imac"}},
	{"Network Device", []string{"router", "switch", "access point", "access-point", "gateway", "modem"}},
}

// GuessDeviceType categorizes a device from its hostname and
// manufacturer strings. Either may be empty; with both empty the
// result is always track.UnknownDevice.
func GuessDeviceType(hostname, manufacturer string) string {
	if hostname == "" && manufacturer == "" {
		return track.UnknownDevice
	}

	search := strings.ToLower(hostname + " " + manufacturer)
	for _, r := range deviceTypeRules {
		for _, kw := range r.keywords {
			if strings.Contains(search, kw) {
				return r.category
			}
		}
	}
	return track.UnknownDevice
}
