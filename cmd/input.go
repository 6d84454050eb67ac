package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gpr-cli/internal/config"
	"github.com/sells-group/gpr-cli/internal/fetcher"
	"github.com/sells-group/gpr-cli/internal/panel"
)

// addInputFlags registers the panel source flags shared by the panel-reading commands.
func addInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("input", "", "panel file (.csv, .tsv or .xlsx; overrides panel.path)")
	f.String("url", "", "download the panel from this URL before reading (overrides panel.url)")
	f.String("sheet", "", "XLSX sheet name (overrides panel.sheet)")
	f.String("charset", "", "CSV text encoding, e.g. latin1 (overrides panel.charset)")
	f.String("country-map", "", "YAML file of code: name entries (overrides panel.country_map_file)")
}

// applyPanelOverrides returns a copy of the base panel config with CLI flag overrides applied.
func applyPanelOverrides(cmd *cobra.Command, base config.PanelConfig) config.PanelConfig {
	c := base

	if v, _ := cmd.Flags().GetString("input"); v != "" {
		c.Path = v
		c.URL = ""
	}
	if v, _ := cmd.Flags().GetString("url"); v != "" {
		c.URL = v
	}
	if v, _ := cmd.Flags().GetString("sheet"); v != "" {
		c.Sheet = v
	}
	if v, _ := cmd.Flags().GetString("charset"); v != "" {
		c.Charset = v
	}
	if v, _ := cmd.Flags().GetString("country-map"); v != "" {
		c.CountryMapFile = v
	}

	return c
}

func newFetcher(fc config.FetchConfig) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  fc.UserAgent,
		Timeout:    time.Duration(fc.TimeoutSecs) * time.Second,
		MaxRetries: fc.MaxRetries,
	})
}

// loadPanel reads the panel described by pc, downloading it first when a URL is set.
func loadPanel(ctx context.Context, pc config.PanelConfig, f fetcher.Fetcher) (*panel.Panel, error) {
	codeMap, err := panel.LoadCodeMap(pc.CountryMapFile)
	if err != nil {
		return nil, err
	}

	src := pc.Path
	if pc.URL != "" {
		dir, err := os.MkdirTemp("", "gpr-panel-")
		if err != nil {
			return nil, eris.Wrap(err, "panel: create temp dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		ext := remoteExt(pc.URL)
		src = filepath.Join(dir, "panel"+ext)
		n, err := f.DownloadToFile(ctx, pc.URL, src)
		if err != nil {
			return nil, eris.Wrapf(err, "panel: download %s", pc.URL)
		}
		if ext == "" {
			if ext, err = sniffExt(src); err != nil {
				return nil, err
			}
			named := src + ext
			if err := os.Rename(src, named); err != nil {
				return nil, eris.Wrap(err, "panel: rename download")
			}
			src = named
		}
		zap.L().Info("panel: downloaded",
			zap.String("url", pc.URL),
			zap.String("format", ext),
			zap.Int64("bytes", n),
		)
	}
	if src == "" {
		return nil, eris.New("panel: no input, set --input, --url, panel.path or panel.url")
	}

	return panel.Read(ctx, src, panel.ReadOptions{
		Sheet:   pc.Sheet,
		Charset: pc.Charset,
		CodeMap: codeMap,
	})
}

// remoteExt returns the file extension of a URL path, or "" when it has none.
func remoteExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Ext(u.Path)
}

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// sniffExt picks an extension from the leading bytes of a download: .xlsx for
// ZIP containers, .xls for OLE2 workbooks, .csv otherwise.
func sniffExt(name string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", eris.Wrap(err, "panel: open download")
	}
	defer f.Close() //nolint:errcheck

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", eris.Wrap(err, "panel: read download")
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic):
		return ".xlsx", nil
	case bytes.HasPrefix(head, ole2Magic):
		return ".xls", nil
	default:
		return ".csv", nil
	}
}
