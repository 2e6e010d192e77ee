// Package keys builds cache keys for search results.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
)

// NearbyPrefix starts every nearby-search key; invalidation purges by it.
const NearbyPrefix = "nearby:v1:"

// Nearby keys a nearby search by origin text and status set. Status order
// and case do not matter.
func Nearby(lat, lon string, statuses []string) string {
	lat = strings.TrimSpace(lat)
	lon = strings.TrimSpace(lon)
	st := strings.Join(model.NormalizeStatuses(statuses).Sorted(), ",")

	raw := lat + ":" + lon + ":" + st
	sum := xxhash.Sum64String(raw)

	const maxPartLen = 32
	return fmt.Sprintf("%slat=%s:lon=%s:st=%s:h=%016x",
		NearbyPrefix,
		truncate(sanitizeForKey(lat), maxPartLen),
		truncate(sanitizeForKey(lon), maxPartLen),
		truncate(sanitizeForKey(st), 4*maxPartLen),
		sum)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '.' || r == ',' || r == '_' || r == '-':
			out = r
		default:
			// any other rune (including non-ASCII) becomes '~'
			out = '~'
		}
		if (out == '_' || out == '~') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r <= unicode.MaxASCII && unicode.IsDigit(r))
}
