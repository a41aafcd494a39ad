package locale

import (
	"net/url"
	"strconv"
	"strings"
)

// ParseLatLon extracts coordinates from a map link. It understands geo: URIs
// ("geo:35.70,51.40") and query-style links ("...?q=35.70,51.40" or explicit
// lat/lon parameters). ok is false when the text matches neither form;
// callers fall back to zero values.
func ParseLatLon(s string) (lat, lon float64, ok bool) {
	s = strings.TrimSpace(ToASCIIDigits(s))
	if s == "" {
		return 0, 0, false
	}

	if rest, found := strings.CutPrefix(s, "geo:"); found {
		if idx := strings.IndexAny(rest, "?;"); idx >= 0 {
			rest = rest[:idx]
		}
		return parsePair(rest)
	}

	u, err := url.Parse(s)
	if err != nil {
		return 0, 0, false
	}
	q := u.Query()
	if pair := q.Get("q"); pair != "" {
		if lat, lon, ok = parsePair(pair); ok {
			return lat, lon, true
		}
	}
	latRaw := q.Get("lat")
	lonRaw := q.Get("lon")
	if lonRaw == "" {
		lonRaw = q.Get("lng")
	}
	if latRaw == "" || lonRaw == "" {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(latRaw, 64)
	lon, errLon := strconv.ParseFloat(lonRaw, 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func parsePair(s string) (lat, lon float64, ok bool) {
	first, second, found := strings.Cut(s, ",")
	if !found {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(first), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(second), 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
