package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/msettings/msettings/cmd/common"
	"github.com/msettings/msettings/internal/config"
	"github.com/msettings/msettings/pkg/logger"
	"github.com/msettings/msettings/pkg/settingsync"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
)

var (
	updateURL string

	updateFlags = append([]cli.Flag{
		cli.StringFlag{
			Name:        "url, u",
			Usage:       "settings document to fetch (defaults to the saved URL)",
			Destination: &updateURL,
		},
	}, pathFlags...)
)

// progressOutput is where the progress bar renders. Tests set it to nil.
var progressOutput io.Writer = os.Stdout

func update(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return common.Help(ctx)
	}
	p, err := config.ResolvePaths(configDir, targetPath)
	if err != nil {
		common.PrintRuntimeErr(ctx, "update", "resolve_paths", err)
		return nil
	}

	url := updateURL
	if url == "" {
		cfg, err := config.NewStore(p.ConfigFile, p.LegacyFile, nil).Load()
		if err != nil && !errors.Is(err, config.ErrConfigParse) {
			common.PrintRuntimeErr(ctx, "update", "load_config", err)
			return nil
		}
		url = cfg.URL
	}

	settings, err := config.LoadSettings()
	if err != nil {
		common.PrintRuntimeErr(ctx, "update", "settings", err)
		return nil
	}
	fetcher, err := newFetcher(settings)
	if err != nil {
		common.PrintRuntimeErr(ctx, "update", "new_fetcher", err)
		return nil
	}

	replacer := settingsync.NewReplacer(nil, logger.NewStandardLogger(log.New(os.Stderr, "", 0)))
	n, err := fetchOnce(context.Background(), fetcher, replacer, url, p.Target)
	if err != nil {
		common.PrintRuntimeErr(ctx, "update", "fetch", err)
		return nil
	}
	fmt.Printf("Updated %s from %s (%d bytes)\n", p.Target, url, n)
	return nil
}

// fetchOnce downloads url into target behind a progress bar and returns
// the number of bytes written.
func fetchOnce(ctx context.Context, f *settingsync.Fetcher, r *settingsync.Replacer, url, target string) (int, error) {
	pb := mpb.New(mpb.WithOutput(progressOutput), mpb.WithWidth(64))
	bar := common.InitBar(pb, filepath.Base(target)+" ", 0)

	data, err := f.WithProgress(func(read, total int64) {
		if total > 0 {
			bar.SetTotal(total, false)
		}
		bar.SetCurrent(read)
	}).Fetch(ctx, url)
	if err != nil {
		bar.Abort(false)
		pb.Wait()
		return 0, err
	}
	bar.SetTotal(-1, true)
	pb.Wait()

	if err := r.Replace(target, data); err != nil {
		return 0, err
	}
	return len(data), nil
}
