// Package signals derives comparable fingerprints from entity properties:
// phonetic name codes, geo buckets, device identifiers, cryptocurrency
// addresses, perceptual hashes, and document signatures. Extraction is
// deterministic and side-effect free; missing fields simply omit the
// corresponding signal list.
package signals

import (
	"strconv"

	"github.com/BrianCLong/summit-sub013/pkg/fingerprint"
	"github.com/BrianCLong/summit-sub013/pkg/models"
	"github.com/BrianCLong/summit-sub013/pkg/normalizers"
)

// Extract computes the signal bundle for one entity from its current
// property state.
func Extract(e *models.Entity) models.EntitySignals {
	var s models.EntitySignals

	for _, name := range stringValues(e.Props[models.PropName]) {
		if code := Metaphone(normalizers.NormalizeName(name)); code != "" {
			s.Phonetic = append(s.Phonetic, code)
		}
	}

	if bucket, ok := GeoBucket(e.Props[models.PropLat], e.Props[models.PropLon]); ok {
		s.GeoBuckets = append(s.GeoBuckets, bucket)
	}

	for _, ua := range stringValues(e.Props[models.PropUserAgent]) {
		s.DeviceIDs = append(s.DeviceIDs, normalizers.NormalizeAddress(ua))
	}

	for _, addr := range stringValues(e.Props[models.PropCryptoAddress]) {
		s.CryptoAddrs = append(s.CryptoAddrs, normalizers.NormalizeAddress(addr))
	}

	for _, h := range stringValues(e.Props[models.PropPHash]) {
		s.PHashes = append(s.PHashes, h)
	}

	if len(e.Props) > 0 {
		s.DocSigs = append(s.DocSigs, fingerprint.Generate(e.Props))
	}

	return s
}

// GeoBucket renders a "lat,lon" bucket key from the two coordinate
// properties. Coordinates are rounded to four decimal places so that
// re-ingested values with float noise still land in the same bucket.
func GeoBucket(lat, lon any) (string, bool) {
	latF, ok := toFloat(lat)
	if !ok {
		return "", false
	}
	lonF, ok := toFloat(lon)
	if !ok {
		return "", false
	}
	return formatCoord(latF) + "," + formatCoord(lonF), true
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// stringValues flattens a property that may hold a single string or a list of
// strings. Non-string values are skipped.
func stringValues(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
