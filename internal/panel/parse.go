package panel

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Column name conventions of the GPR export.
const (
	CurrentPrefix  = "GPRC_"
	HistoricPrefix = "GPRHC_"

	varNameColumn  = "var_name"
	varLabelColumn = "var_label"
)

var (
	dateLayouts = []string{
		"2006-01-02",
		"2006-01",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z07:00",
		"1/2/2006",
		"01/02/2006",
		"1/2/06",
		"Jan 2006",
		"January 2006",
		"2006/01",
	}

	stataMonth = regexp.MustCompile(`^(\d{4})[mM](\d{1,2})$`)

	excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

	missingTokens = map[string]bool{
		"":     true,
		"na":   true,
		"n/a":  true,
		"nan":  true,
		"#n/a": true,
		".":    true,
		"null": true,
	}
)

// ParseOptions controls how raw rows become a Panel.
type ParseOptions struct {
	// CodeMap is the static code to name fallback. Nil uses DefaultCodeMap.
	CodeMap map[string]string
}

// Parse builds a Panel from a header row and data rows as produced by the CSV and
// XLSX readers. Rows without a parsable date contribute only var_name/var_label
// metadata.
func Parse(header []string, rows [][]string, opts ParseOptions) (*Panel, error) {
	if len(header) == 0 {
		return nil, eris.New("panel: empty header")
	}
	codeMap := opts.CodeMap
	if codeMap == nil {
		codeMap = DefaultCodeMap()
	}

	dateCol, nameCol, labelCol := 0, -1, -1
	currentCols := map[string]int{}
	historicCols := map[string]int{}
	var codes []string

	for i, h := range header {
		h = strings.TrimSpace(h)
		switch lower := strings.ToLower(h); {
		case lower == "month" || lower == "date":
			dateCol = i
		case lower == varNameColumn:
			nameCol = i
		case lower == varLabelColumn:
			labelCol = i
		case strings.HasPrefix(h, CurrentPrefix) && len(h) > len(CurrentPrefix):
			code := NormalizeCode(h[len(CurrentPrefix):])
			if _, dup := currentCols[code]; !dup {
				codes = append(codes, code)
			}
			currentCols[code] = i
		case strings.HasPrefix(h, HistoricPrefix) && len(h) > len(HistoricPrefix):
			historicCols[NormalizeCode(h[len(HistoricPrefix):])] = i
		}
	}
	if len(codes) == 0 {
		return nil, eris.Errorf("panel: no %s<code> columns in header", CurrentPrefix)
	}

	labels := map[string]string{}
	var dates []time.Time
	current := make(map[string][]float64, len(codes))
	historic := make(map[string][]float64, len(codes))
	skipped := 0

	for _, row := range rows {
		if nameCol >= 0 && labelCol >= 0 {
			name, label := cell(row, nameCol), cell(row, labelCol)
			if name != "" && label != "" {
				labels[labelKey(name)] = label
			}
		}

		d, ok := ParseDate(cell(row, dateCol))
		if !ok {
			skipped++
			continue
		}
		dates = append(dates, d)
		for _, code := range codes {
			current[code] = append(current[code], parseValue(cell(row, currentCols[code])))
			if col, ok := historicCols[code]; ok {
				historic[code] = append(historic[code], parseValue(cell(row, col)))
			}
		}
	}
	if len(dates) == 0 {
		return nil, eris.New("panel: no rows with a parsable date")
	}
	if skipped > 0 {
		zap.L().Debug("panel: rows without a date", zap.Int("rows", skipped))
	}

	countries := make([]Country, 0, len(codes))
	for _, code := range codes {
		countries = append(countries, Country{
			Code: code,
			Name: ResolveName(code, labels, codeMap),
		})
		if _, ok := historicCols[code]; !ok {
			zap.L().Warn("panel: current column without historic partner",
				zap.String("country", code),
				zap.String("missing", HistoricPrefix+code),
			)
		}
	}

	return New(Data{
		Dates:     dates,
		Countries: countries,
		Current:   current,
		Historic:  historic,
	})
}

// ParseDate parses the date formats seen in GPR exports and normalizes to the
// first day of the month in UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return monthStart(t), true
		}
	}
	if m := stataMonth.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if mo >= 1 && mo <= 12 {
			return time.Date(y, time.Month(mo), 1, 0, 0, 0, 0, time.UTC), true
		}
	}
	// Excel serial day number.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 1 && f < 2958466 {
		return monthStart(excelEpoch.AddDate(0, 0, int(f))), true
	}
	return time.Time{}, false
}

// labelKey normalizes the code part of a var_name so labels line up with
// normalized column codes.
func labelKey(name string) string {
	name = strings.TrimSpace(name)
	if code, ok := strings.CutPrefix(name, CurrentPrefix); ok {
		return CurrentPrefix + NormalizeCode(code)
	}
	return name
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// parseValue returns NaN for missing or invalid cells.
func parseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if missingTokens[strings.ToLower(s)] {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
