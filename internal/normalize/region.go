package normalize

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// RegionLocale is the language region display names are resolved in.
var RegionLocale = language.SimplifiedChinese

var (
	regionOnce   sync.Once
	regionCodes  map[string]string // alpha-2 -> display name in RegionLocale
	regionByName map[string]string // lower-cased display name -> alpha-2
)

// loadRegionTables enumerates every ISO 3166-1 alpha-2 country known to
// x/text that has a display name in RegionLocale.
func loadRegionTables() {
	regionCodes = make(map[string]string, 256)
	regionByName = make(map[string]string, 512)
	local := display.Regions(RegionLocale)
	english := display.English.Regions()

	for a := 'A'; a <= 'Z'; a++ {
		for b := 'A'; b <= 'Z'; b++ {
			code := string([]rune{a, b})
			r, err := language.ParseRegion(code)
			if err != nil || !r.IsCountry() || r.String() != code {
				continue
			}
			name := local.Name(r)
			if name == "" {
				continue
			}
			regionCodes[code] = name
			for _, label := range []string{name, english.Name(r)} {
				key := strings.ToLower(label)
				if key == "" {
					continue
				}
				if _, taken := regionByName[key]; !taken {
					regionByName[key] = code
				}
			}
		}
	}
}

// Region canonicalizes a region value to an alpha-2 code when possible.
//
// Empty input stays empty. A code (any case) naming a known country is
// returned upper-cased. A display name in RegionLocale or English is
// mapped to its code. Anything else is returned trimmed.
func Region(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	regionOnce.Do(loadRegionTables)
	upper := strings.ToUpper(trimmed)
	if _, ok := regionCodes[upper]; ok {
		return upper
	}
	if code, ok := regionByName[strings.ToLower(trimmed)]; ok {
		return code
	}
	return trimmed
}

// RegionName returns the display name of an alpha-2 code, or "" if unknown.
func RegionName(code string) string {
	regionOnce.Do(loadRegionTables)
	return regionCodes[strings.ToUpper(strings.TrimSpace(code))]
}
