package geo

import "strings"

// AuditPrecision is the geohash precision recorded on audit entries.
// Six characters is roughly ±0.61 km, coarse enough that audit rows do not
// pinpoint a submitter's exact position.
const AuditPrecision = 6

// base32 is the geohash base32 alphabet (standard set excluding a, i, l, o).
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// validGeohashChars is a lookup for valid geohash characters.
var validGeohashChars = func() map[rune]bool {
	m := make(map[rune]bool, len(base32))
	for _, c := range base32 {
		m[c] = true
	}
	return m
}()

// EncodeGeohash encodes a coordinate pair into a geohash string of the given
// precision using the standard interleaved base32 algorithm.
func EncodeGeohash(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = AuditPrecision
	}

	latRange := [2]float64{-90.0, 90.0}
	lngRange := [2]float64{-180.0, 180.0}

	var out strings.Builder
	out.Grow(precision)

	bits := 0
	var ch uint
	even := true

	for out.Len() < precision {
		if even {
			mid := (lngRange[0] + lngRange[1]) / 2
			if lng > mid {
				ch |= 1 << (4 - bits)
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if lat > mid {
				ch |= 1 << (4 - bits)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		even = !even
		bits++
		if bits == 5 {
			out.WriteByte(base32[ch])
			bits = 0
			ch = 0
		}
	}

	return out.String()
}

// TruncateGeohash truncates a geohash to the given precision for coarse
// display. Returns empty string if the input contains invalid characters or
// precision is less than 1; inputs shorter than the precision are returned
// lowercased as is.
func TruncateGeohash(input string, precision int) string {
	if input == "" || precision < 1 {
		return ""
	}

	lower := strings.ToLower(input)
	for _, c := range lower {
		if !validGeohashChars[c] {
			return ""
		}
	}

	if len(lower) <= precision {
		return lower
	}
	return lower[:precision]
}
