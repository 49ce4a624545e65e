package normalize

import "strings"

// unitMappings collapses magnitude-prefixed and spelled-out units to a
// canonical base unit. Lookup is case-insensitive on the input unit. The
// numeric value is NOT rescaled when the unit is rewritten; this is a
// display/grouping normalization, and downstream consumers must not assume
// "100 mA" became "0.1 A".
var unitMappings = map[string]string{
	// Current
	"ma":        "A",
	"milliamp":  "A",
	"milliamps": "A",
	"microamp":  "A",
	"ua":        "A",

	// Voltage
	"mv":         "V",
	"millivolt":  "V",
	"millivolts": "V",
	"kv":         "V",
	"kilovolt":   "V",

	// Power
	"mw":        "W",
	"milliwatt": "W",
	"kw":        "W",
	"kilowatt":  "W",

	// Frequency
	"mhz":       "Hz",
	"megahertz": "Hz",
	"ghz":       "Hz",
	"gigahertz": "Hz",
	"khz":       "Hz",
	"kilohertz": "Hz",

	// Time
	"ms":           "s",
	"millisecond":  "s",
	"milliseconds": "s",
	"us":           "s",
	"microsecond":  "s",
	"microseconds": "s",
	"ns":           "s",
	"nanosecond":   "s",
	"nanoseconds":  "s",

	// Temperature
	"celsius":    "°C",
	"fahrenheit": "°F",
	"kelvin":     "K",

	// Memory/Storage
	"kb":       "B",
	"mb":       "B",
	"gb":       "B",
	"tb":       "B",
	"kilobyte": "B",
	"megabyte": "B",
	"gigabyte": "B",
	"terabyte": "B",

	// Rate/Percentage
	"percent":    "%",
	"percentage": "%",
	"pct":        "%",

	// Currency
	"dollar":  "$",
	"dollars": "$",
	"usd":     "$",
	"euro":    "€",
	"euros":   "€",
	"eur":     "€",
}

// canonicalUnit returns the base unit for an input unit, or "" when no
// mapping applies.
func canonicalUnit(unit string) string {
	return unitMappings[strings.ToLower(unit)]
}
