package weather

import (
	"math"
	"strconv"
)

// KeyPrefix namespaces weather records in the persisted cache.
const KeyPrefix = "weather_cache_"

// CacheKey maps a coordinate pair to its cache key. Both coordinates are
// rounded to 2 decimal places (~1.1 km), so nearby lookups share one slot.
func CacheKey(lat, lon float64) string {
	return KeyPrefix + roundCoord(lat) + "_" + roundCoord(lon)
}

func roundCoord(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 {
		r = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(r, 'f', 2, 64)
}
