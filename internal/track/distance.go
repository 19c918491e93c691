package track

import "math"

// EstimateDistance converts a smoothed RSSI into meters using the
// log-distance path-loss model:
//
//	distance = 10 ^ ((referencePower - rssi) / (10 * pathLossExponent))
//
// referencePower is the expected RSSI at one meter; the exponent
// captures environment absorption (~2 free space, 3-4 obstructed
// indoor). The result is a coarse approximation by design; its value
// is reproducibility, not precision. When rssi equals referencePower
// the distance is exactly 1.
func EstimateDistance(smoothedRSSI, referencePower, pathLossExponent float64) float64 {
	if pathLossExponent <= 0 {
		return 0
	}
	return math.Pow(10, (referencePower-smoothedRSSI)/(10*pathLossExponent))
}
