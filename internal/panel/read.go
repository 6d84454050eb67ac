package panel

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gpr-cli/internal/fetcher"
)

// ReadOptions configures Read.
type ReadOptions struct {
	Sheet   string // XLSX sheet name; empty reads the first sheet
	Charset string // CSV text encoding; empty means UTF-8
	CodeMap map[string]string
}

// Read loads a panel file. The format is chosen by extension: .xlsx is read as a
// workbook, anything else as delimited text (.tsv uses tabs).
func Read(ctx context.Context, path string, opts ReadOptions) (*Panel, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: opts.Sheet})
	case ".xls":
		return nil, eris.Errorf("panel: legacy .xls workbooks are not supported, convert %s to .xlsx or .csv", path)
	default:
		rows, err = readDelimited(ctx, path, opts.Charset)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "panel: read %s", path)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("panel: %s is empty", path)
	}

	p, err := Parse(rows[0], rows[1:], ParseOptions{CodeMap: opts.CodeMap})
	if err != nil {
		return nil, eris.Wrapf(err, "panel: parse %s", path)
	}

	zap.L().Info("panel: loaded",
		zap.String("path", path),
		zap.Int("months", p.Len()),
		zap.Int("countries", len(p.countries)),
	)
	return p, nil
}

func readDelimited(ctx context.Context, path, charset string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open file")
	}
	defer f.Close() //nolint:errcheck

	opts := fetcher.CSVOptions{
		LazyQuotes: true,
		TrimSpace:  true,
		Charset:    charset,
	}
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		opts.Delimiter = '\t'
	}

	rowCh, errCh := fetcher.StreamCSV(ctx, f, opts)
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}
