package civiltime

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ZoneOption is one entry of the zone picker shown when a business is set up.
type ZoneOption struct {
	Name string `json:"name"`
	Zone string `json:"zone"`
}

var supportedZones = []ZoneOption{
	{"Buenos Aires / CABA", "America/Argentina/Buenos_Aires"},
	{"Córdoba", "America/Argentina/Cordoba"},
	{"Mendoza", "America/Argentina/Mendoza"},
	{"Tucumán", "America/Argentina/Tucuman"},
	{"Salta", "America/Argentina/Salta"},
	{"San Juan", "America/Argentina/San_Juan"},
	{"Catamarca", "America/Argentina/Catamarca"},
	{"Jujuy", "America/Argentina/Jujuy"},
	{"La Rioja", "America/Argentina/La_Rioja"},
	{"Santa Cruz", "America/Argentina/Rio_Gallegos"},
	{"Tierra del Fuego", "America/Argentina/Ushuaia"},
}

// Keys are folded with provinceKey.
var provinceZones = map[string]string{
	"buenos aires":           "America/Argentina/Buenos_Aires",
	"caba":                   "America/Argentina/Buenos_Aires",
	"ciudad de buenos aires": "America/Argentina/Buenos_Aires",
	"cordoba":                "America/Argentina/Cordoba",
	"mendoza":                "America/Argentina/Mendoza",
	"tucuman":                "America/Argentina/Tucuman",
	"salta":                  "America/Argentina/Salta",
	"san juan":               "America/Argentina/San_Juan",
	"catamarca":              "America/Argentina/Catamarca",
	"jujuy":                  "America/Argentina/Jujuy",
	"la rioja":               "America/Argentina/La_Rioja",
	"santa cruz":             "America/Argentina/Rio_Gallegos",
	"tierra del fuego":       "America/Argentina/Ushuaia",
	"entre rios":             "America/Argentina/Buenos_Aires",
	"santa fe":               "America/Argentina/Buenos_Aires",
	"corrientes":             "America/Argentina/Buenos_Aires",
	"misiones":               "America/Argentina/Buenos_Aires",
	"formosa":                "America/Argentina/Buenos_Aires",
	"chaco":                  "America/Argentina/Buenos_Aires",
	"santiago del estero":    "America/Argentina/Buenos_Aires",
	"la pampa":               "America/Argentina/Buenos_Aires",
	"neuquen":                "America/Argentina/Buenos_Aires",
	"rio negro":              "America/Argentina/Buenos_Aires",
	"chubut":                 "America/Argentina/Buenos_Aires",
}

// SupportedZones returns the zones offered in the business setup flow.
func SupportedZones() []ZoneOption {
	out := make([]ZoneOption, len(supportedZones))
	copy(out, supportedZones)
	return out
}

// ZoneForProvince maps a province name to its zone. Matching ignores case,
// accents and underscores. Unknown provinces map to DefaultZone.
func ZoneForProvince(province string) string {
	if zone, ok := provinceZones[provinceKey(province)]; ok {
		return zone
	}
	return DefaultZone
}

// ValidateZone checks that zone exists in the IANA database. supported is
// false for real zones that are not in the SupportedZones catalogue.
func ValidateZone(zone string) (supported bool, err error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return false, fmt.Errorf("timezone is empty")
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return false, fmt.Errorf("invalid timezone %q: %w", zone, err)
	}
	for _, z := range supportedZones {
		if z.Zone == zone {
			return true, nil
		}
	}
	return false, nil
}

func provinceKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = cases.Fold().String(strings.ReplaceAll(stripped, "_", " "))
	return strings.Join(strings.Fields(stripped), " ")
}
