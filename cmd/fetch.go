package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gpr-cli/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the GPR panel file",
	Long: `Download the panel from --url (or panel.url) to --output. The server ETag is
kept next to the file in <output>.etag so later runs skip unchanged downloads.
Files are saved as served; a legacy .xls export must be converted to .xlsx or
.csv before scoring.`,
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.String("url", "", "panel URL (overrides panel.url)")
	f.String("output", "", "destination file (default: last path segment of the URL)")
	f.Bool("force", false, "download even when the server reports no change")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("fetch"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "fetch"))

	rawURL := cfg.Panel.URL
	if v, _ := cmd.Flags().GetString("url"); v != "" {
		rawURL = v
	}
	if rawURL == "" {
		return eris.New("fetch: --url or panel.url is required")
	}
	dest, _ := cmd.Flags().GetString("output")
	if dest == "" {
		dest = defaultDest(rawURL)
	}
	force, _ := cmd.Flags().GetBool("force")

	updated, err := fetchPanel(ctx, newFetcher(cfg.Fetch), rawURL, dest, force)
	if err != nil {
		return err
	}
	if !updated {
		log.Info("panel unchanged", zap.String("url", rawURL), zap.String("path", dest))
		fmt.Fprintf(cmd.OutOrStdout(), "%s is up to date\n", dest) //nolint:errcheck
		return nil
	}
	log.Info("panel downloaded", zap.String("url", rawURL), zap.String("path", dest))
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", dest) //nolint:errcheck
	return nil
}

// fetchPanel downloads rawURL to dest unless the stored ETag still matches. It
// reports whether dest was written.
func fetchPanel(ctx context.Context, f fetcher.Fetcher, rawURL, dest string, force bool) (bool, error) {
	etagPath := dest + ".etag"
	etag := ""
	if _, err := os.Stat(dest); err == nil && !force {
		etag = readETag(etagPath)
	}

	body, newETag, changed, err := f.DownloadIfChanged(ctx, rawURL, etag)
	if err != nil {
		return false, eris.Wrapf(err, "fetch: %s", rawURL)
	}
	if !changed {
		return false, nil
	}
	defer body.Close() //nolint:errcheck

	if err := copyToFile(dest, body); err != nil {
		return false, err
	}
	if newETag == "" {
		_ = os.Remove(etagPath)
		return true, nil
	}
	if err := os.WriteFile(etagPath, []byte(newETag+"\n"), 0o644); err != nil {
		return true, eris.Wrap(err, "fetch: write etag")
	}
	return true, nil
}

// defaultDest is the last path segment of rawURL.
func defaultDest(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return "data_gpr_export.xlsx"
}

func readETag(name string) string {
	data, err := os.ReadFile(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func copyToFile(dest string, r io.Reader) error {
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrap(err, "fetch: create file")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return eris.Wrap(err, "fetch: write file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "fetch: close file")
	}
	return eris.Wrap(os.Rename(tmp, dest), "fetch: rename file")
}
