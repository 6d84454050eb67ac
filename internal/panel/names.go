package panel

import (
	"maps"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

var labelSuffix = regexp.MustCompile(`\(([^()]+)\)\s*$`)

// LabelName extracts the parenthesized trailing segment of a var_label, e.g.
// "Geopolitical Risk Index: (France)" yields "France".
func LabelName(label string) (string, bool) {
	m := labelSuffix.FindStringSubmatch(label)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	return name, name != ""
}

// NormalizeCode returns the canonical form of a country code: trimmed and upper-case.
// Header codes, exclusions and code map keys all pass through it.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeCodes normalizes every code and drops empty entries.
func NormalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = NormalizeCode(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// ResolveName picks a display name for code: label-derived name first, then the
// static code map, then the code itself.
func ResolveName(code string, labels, codeMap map[string]string) string {
	if label, ok := labels[CurrentPrefix+code]; ok {
		if name, ok := LabelName(label); ok {
			return name
		}
	}
	if name := strings.TrimSpace(codeMap[code]); name != "" {
		return name
	}
	return code
}

// DefaultCodeMap returns the built-in ISO-3 code to country name table for the
// countries covered by the GPR export.
func DefaultCodeMap() map[string]string {
	return map[string]string{
		"ARG": "Argentina",
		"AUS": "Australia",
		"BEL": "Belgium",
		"BRA": "Brazil",
		"CAN": "Canada",
		"CHE": "Switzerland",
		"CHL": "Chile",
		"CHN": "China",
		"COL": "Colombia",
		"DEU": "Germany",
		"DNK": "Denmark",
		"EGY": "Egypt",
		"ESP": "Spain",
		"FIN": "Finland",
		"FRA": "France",
		"GBR": "United Kingdom",
		"HKG": "Hong Kong",
		"HUN": "Hungary",
		"IDN": "Indonesia",
		"IND": "India",
		"ISR": "Israel",
		"ITA": "Italy",
		"JPN": "Japan",
		"KOR": "South Korea",
		"MEX": "Mexico",
		"MYS": "Malaysia",
		"NLD": "Netherlands",
		"NOR": "Norway",
		"PER": "Peru",
		"PHL": "Philippines",
		"POL": "Poland",
		"PRT": "Portugal",
		"RUS": "Russia",
		"SAU": "Saudi Arabia",
		"SWE": "Sweden",
		"THA": "Thailand",
		"TUN": "Tunisia",
		"TUR": "Turkey",
		"TWN": "Taiwan",
		"UKR": "Ukraine",
		"USA": "United States",
		"VEN": "Venezuela",
		"VNM": "Vietnam",
		"ZAF": "South Africa",
	}
}

// LoadCodeMap reads a YAML mapping of code to name and layers it over the default table.
// An empty path returns the default table.
func LoadCodeMap(path string) (map[string]string, error) {
	out := DefaultCodeMap()
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "panel: read country map %s", path)
	}

	var extra map[string]string
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, eris.Wrapf(err, "panel: parse country map %s", path)
	}

	upper := make(map[string]string, len(extra))
	for k, v := range extra {
		upper[NormalizeCode(k)] = v
	}
	maps.Copy(out, upper)
	return out, nil
}
