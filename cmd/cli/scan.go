package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alecthomas/units"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pkgarch/archscan/pkg/cache"
	"github.com/pkgarch/archscan/pkg/detect"
	"github.com/pkgarch/archscan/pkg/filesystem"
	"github.com/pkgarch/archscan/pkg/report"
	"github.com/pkgarch/archscan/pkg/scanner"
)

const s3Prefix = "s3://"

var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "Detect the architecture of the packages under the given paths",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err = globalInit(cmd, args); err != nil {
			return
		}
		if len(args) == 0 {
			args = conf.Paths
		}

		results, err := runScan(cmd.Context(), args)
		if err != nil {
			return
		}

		if len(results) == 0 {
			if !conf.Quiet {
				fmt.Println("no package files found")
			}
			return
		}

		table := report.NewTable(os.Stdout, !conf.NoColor && !color.NoColor)
		if err = table.Render(results); err != nil {
			return
		}

		if conf.Report != "" {
			err = writeReport(conf.Report, results)
		}
		return
	},
	Args: checkPaths,
}

func checkPaths(cmd *cobra.Command, args []string) error {
	args = append(args, conf.Paths...)
	if len(args) < 1 {
		return errors.New("at least one path is mandatory")
	}
	for _, arg := range args {
		if strings.HasPrefix(arg, s3Prefix) {
			continue
		}
		if _, err := os.Stat(arg); err != nil {
			return fmt.Errorf("could not check path %s", arg)
		}
	}
	return nil
}

func scannerConfig() (cfg scanner.Config, err error) {
	maxReadSize, err := units.ParseStrictBytes(conf.MaxReadSize)
	if err != nil {
		err = fmt.Errorf("invalid max-read-size %q: %w", conf.MaxReadSize, err)
		return
	}
	cfg = scanner.Config{
		Workers:        conf.Workers,
		Recursive:      conf.Recursive,
		FollowSymlinks: conf.FollowSymlinks,
		MaxReadSize:    maxReadSize,
		ScanValidity:   conf.Cache.ScanValidity,
	}
	return
}

func openCache() (cacher cache.Cacher, err error) {
	if conf.Cache.Disabled {
		return
	}
	cacher, err = cache.NewCache(conf.Cache.Location)
	if err != nil {
		// a broken cache only costs speed, not correctness
		logger.Warn("could not open cache, continue without", "location", conf.Cache.Location, "error", err)
		cacher, err = nil, nil
	}
	return
}

func runScan(ctx context.Context, args []string) (results []detect.Result, err error) {
	cfg, err := scannerConfig()
	if err != nil {
		return
	}

	cacher, err := openCache()
	if err != nil {
		return
	}
	if cacher != nil {
		defer cacher.Close()
	}

	var localPaths, s3Paths []string
	for _, arg := range args {
		if strings.HasPrefix(arg, s3Prefix) {
			s3Paths = append(s3Paths, strings.TrimPrefix(arg, s3Prefix))
		} else {
			localPaths = append(localPaths, filepath.Clean(arg))
		}
	}

	if len(localPaths) > 0 {
		local, scanErr := scanWith(ctx, cfg, filesystem.NewLocalFileSystem(), cacher, localPaths)
		if scanErr != nil {
			err = scanErr
			return
		}
		results = append(results, local...)
	}

	if len(s3Paths) > 0 {
		fsys, s3Err := filesystem.NewS3FileSystem(ctx, filesystem.S3Config{
			Endpoint:        conf.S3.Endpoint,
			Region:          conf.S3.Region,
			AccessKeyID:     conf.S3.AccessKeyID,
			SecretAccessKey: conf.S3.SecretAccessKey,
			Insecure:        conf.S3.Insecure,
			UsePathStyle:    conf.S3.UsePathStyle,
		})
		if s3Err != nil {
			err = s3Err
			return
		}
		remote, scanErr := scanWith(ctx, cfg, fsys, cacher, s3Paths)
		if scanErr != nil {
			err = scanErr
			return
		}
		results = append(results, remote...)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FileName != results[j].FileName {
			return results[i].FileName < results[j].FileName
		}
		return results[i].SourcePath < results[j].SourcePath
	})
	return
}

func scanWith(ctx context.Context, cfg scanner.Config, fsys filesystem.FileSystem, cacher cache.Cacher, paths []string) (results []detect.Result, err error) {
	s := scanner.New(cfg, fsys, cacher)
	s.Start()
	for _, path := range paths {
		if err = s.ScanPath(ctx, path); err != nil {
			logger.Error("error during scan", "path", path, "error", err)
			s.Close()
			return
		}
	}
	s.Close()
	results = s.Results()
	return
}

func writeReport(location string, results []detect.Result) (err error) {
	f, err := os.OpenFile(filepath.Clean(location), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return
	}
	defer func() {
		if e := f.Close(); e != nil {
			logger.Warn("could not close report file", "file", location, "error", e.Error())
		}
	}()

	scan := report.NewScanContext()
	writer := report.NewReportsWriter(f)
	for _, r := range results {
		if err = writer.Write(scan, r); err != nil {
			return
		}
	}
	return
}
