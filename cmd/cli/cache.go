package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgarch/archscan/pkg/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the detection cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached detection",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err = globalInit(cmd, args); err != nil {
			return
		}
		c, err := cache.NewCache(conf.Cache.Location)
		if err != nil {
			return fmt.Errorf("could not open cache %s: %w", conf.Cache.Location, err)
		}
		defer c.Close()
		if err = c.Clear(); err != nil {
			return
		}
		if !conf.Quiet {
			fmt.Println("cache cleared")
		}
		return
	},
}
