package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgarch/archscan/pkg/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print archscan version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("archscan version: %s\n", config.Version)
	},
}
