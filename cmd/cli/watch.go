package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pkgarch/archscan/pkg/config"
	"github.com/pkgarch/archscan/pkg/detect"
	"github.com/pkgarch/archscan/pkg/filesystem"
	"github.com/pkgarch/archscan/pkg/monitor"
	"github.com/pkgarch/archscan/pkg/report"
	"github.com/pkgarch/archscan/pkg/scanner"
)

var watchCmd = &cobra.Command{
	Use:   "watch [directories...]",
	Short: "Watch directories and detect the architecture of packages as they arrive",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err = globalInit(cmd, args); err != nil {
			return
		}
		if len(args) == 0 {
			args = conf.Paths
		}

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

		fsys := filesystem.NewLocalFileSystem()
		s := scanner.New(cfg, fsys, cacher)
		table := report.NewTable(os.Stdout, !conf.NoColor && !color.NoColor)

		modDelay := conf.Watch.ModificationDelay
		if modDelay <= 0 {
			modDelay = config.DefaultModDelay
		}

		onFile := func(file string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return detectAndPrint(ctx, s, fsys, table, file)
		}

		mon, err := monitor.NewMonitor(onFile, conf.Watch.PreScan, modDelay)
		if err != nil {
			return
		}
		defer mon.Close()

		for _, arg := range args {
			if err = mon.Add(arg); err != nil {
				return fmt.Errorf("could not watch %s: %w", arg, err)
			}
		}
		mon.Start()

		if !conf.Quiet {
			fmt.Printf("watching %d directories, press ctrl-c to stop\n", len(args))
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		return
	},
	Args: checkPaths,
}

// detectAndPrint handles one settled file, or every existing package of a
// directory when prescan hands us the watched root.
func detectAndPrint(ctx context.Context, s *scanner.Scanner, fsys filesystem.FileSystem, table *report.Table, file string) (err error) {
	info, err := fsys.Stat(ctx, file)
	if err != nil {
		return
	}
	if info.IsDir() {
		return fsys.WalkDir(ctx, file, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil || d.IsDir() {
				return walkErr
			}
			return detectAndPrint(ctx, s, fsys, table, path)
		})
	}
	if !detect.Match(file) {
		return
	}
	result := s.DetectFile(ctx, file, info.Size(), info.ModTime())
	return table.RenderRow(result)
}
