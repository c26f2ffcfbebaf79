package edgar

import "strings"

// edgarCodes maps the registry's state/country codes to jurisdiction names.
// Canadian provinces collapse to the country.
var edgarCodes = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "DC": "District of Columbia",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho", "IL": "Illinois",
	"IN": "Indiana", "IA": "Iowa", "KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana",
	"ME": "Maine", "MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma", "OR": "Oregon",
	"PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina", "SD": "South Dakota",
	"TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont", "VA": "Virginia",
	"WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
	"PR": "Puerto Rico", "X1": "United States",

	"A0": "Canada", "A1": "Canada", "A2": "Canada", "A3": "Canada", "A4": "Canada",
	"A5": "Canada", "A6": "Canada", "A7": "Canada", "A8": "Canada", "A9": "Canada",
	"B0": "Canada", "Z4": "Canada",

	"F4": "China", "K3": "Hong Kong", "E9": "Cayman Islands", "D8": "British Virgin Islands",
	"D0": "Bermuda", "L3": "Israel", "X0": "United Kingdom", "L2": "Ireland",
	"P7": "Netherlands", "U0": "Singapore", "1T": "Marshall Islands", "C3": "Australia",
	"K7": "India", "V8": "Switzerland", "2M": "Germany", "I0": "France", "M0": "Japan",
	"M5": "Korea", "F5": "Taiwan", "D5": "Brazil", "O5": "Mexico", "N4": "Luxembourg",
	"J3": "Greece", "R1": "Panama", "G4": "Cyprus", "N8": "Malaysia", "W1": "Thailand",
}

// abbreviations covers ISO-style codes that do not collide with US states.
var abbreviations = map[string]string{
	"CN": "China", "HK": "Hong Kong", "GB": "United Kingdom", "UK": "United Kingdom",
	"SG": "Singapore", "JP": "Japan", "KR": "Korea", "TW": "Taiwan", "BR": "Brazil",
	"MX": "Mexico", "IE": "Ireland", "NL": "Netherlands", "CH": "Switzerland",
	"FR": "France", "BM": "Bermuda", "VG": "British Virgin Islands", "US": "United States",
}

// JurisdictionName resolves a registry code, falling back to the payload's
// free-text description. Empty when neither is usable.
func JurisdictionName(code, description string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if name, ok := edgarCodes[code]; ok {
		return name
	}
	if name, ok := abbreviations[code]; ok {
		return name
	}
	return describe(description)
}

func describe(description string) string {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return ""
	}
	// "ONTARIO, CANADA" names the country last
	if i := strings.LastIndex(desc, ","); i >= 0 && i < len(desc)-1 {
		desc = strings.TrimSpace(desc[i+1:])
	}
	if name, ok := abbreviations[strings.ToUpper(desc)]; ok {
		return name
	}
	return titleCase(desc)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if i > 0 && (w == "of" || w == "and" || w == "the") {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
