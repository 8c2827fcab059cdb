package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tigerpoly/internal/config"
	"github.com/sells-group/tigerpoly/internal/fetcher"
	"github.com/sells-group/tigerpoly/internal/tiger"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <county-fips>...",
	Short: "Download TIGER/Line county archives",
	Long: `Downloads the TIGER/Line 2006 Second Edition archive (TGRssccc.ZIP) of each
county given by its 5-digit FIPS code. Archives already present in the
destination directory are not downloaded again. ftp:// base URLs are fetched
over FTP.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := *cfg
		flags := cmd.Flags()
		if flags.Changed("dest") {
			c.Fetch.DestDir, _ = flags.GetString("dest")
		}
		if flags.Changed("base-url") {
			c.Fetch.BaseURL, _ = flags.GetString("base-url")
		}
		if flags.Changed("concurrency") {
			c.Fetch.Concurrency, _ = flags.GetInt("concurrency")
		}
		extract, _ := flags.GetBool("extract")

		if err := c.Validate("fetch"); err != nil {
			return err
		}

		urls := make([]string, len(args))
		for i, fips := range args {
			u, err := tiger.CountyURL(c.Fetch.BaseURL, fips)
			if err != nil {
				return err
			}
			urls[i] = u
		}

		log := zap.L().With(zap.String("command", "fetch"))
		log.Info("fetching county archives",
			zap.Strings("counties", args),
			zap.String("dest", c.Fetch.DestDir),
			zap.Int("concurrency", c.Fetch.Concurrency),
			zap.Bool("extract", extract),
		)

		f := newDispatcher(c.Fetch)
		paths := make([]string, len(urls))

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(c.Fetch.Concurrency)
		for i, u := range urls {
			g.Go(func() error {
				zipPath, err := tiger.Download(gCtx, f, u, c.Fetch.DestDir)
				if err != nil {
					return err
				}
				if extract {
					files, err := fetcher.ExtractZIP(zipPath, c.Fetch.DestDir, tiger.IsRecordFile)
					if err != nil {
						return eris.Wrapf(err, "fetch: extract %s", zipPath)
					}
					log.Debug("archive extracted", zap.String("archive", zipPath), zap.Int("files", len(files)))
				}
				paths[i] = zipPath
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "fetch")
		}

		out := cmd.OutOrStdout()
		for i, p := range paths {
			fmt.Fprintf(out, "%s -> %s\n", tiger.ModuleName(args[i]), p)
		}
		if extract {
			fmt.Fprintf(out, "Extracted %d archives into %s\n", len(paths), filepath.Clean(c.Fetch.DestDir))
		}
		return nil
	},
}

// newDispatcher builds the HTTP and FTP fetchers for the fetch settings.
func newDispatcher(c config.FetchConfig) *fetcher.Dispatcher {
	timeout := time.Duration(c.TimeoutSecs) * time.Second
	httpF := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    c.UserAgent,
		Timeout:      timeout,
		MaxRetries:   c.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	ftpF := fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout})
	return fetcher.NewDispatcher(httpF, ftpF)
}

func init() {
	fetchCmd.Flags().String("dest", "", "destination directory (default: from config or ./tiger)")
	fetchCmd.Flags().String("base-url", "", "archive base URL (default: from config or the Census 2006 SE archive)")
	fetchCmd.Flags().Int("concurrency", 0, "parallel downloads (default: from config or 3)")
	fetchCmd.Flags().Bool("extract", false, "unpack the record files of each archive into the destination directory")
	rootCmd.AddCommand(fetchCmd)
}
