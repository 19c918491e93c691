// Package units converts distances between the metric values the core
// computes and the units requested by API clients.
package units

import "fmt"

const metersPerFoot = 0.3048

// ConvertDistance converts a distance in meters to the target units.
// Unknown units fall back to meters.
func ConvertDistance(meters float64, targetUnits string) float64 {
	switch targetUnits {
	case "ft", "feet":
		return meters / metersPerFoot
	case "m", "meters", "":
		return meters
	default:
		return meters
	}
}

// ValidateUnits reports whether the given units string is recognized.
func ValidateUnits(u string) error {
	switch u {
	case "", "m", "meters", "ft", "feet":
		return nil
	}
	return fmt.Errorf("unknown units %q (want m or ft)", u)
}
