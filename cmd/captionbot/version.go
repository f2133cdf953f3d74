package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the captionbot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("captionbot", version)
		},
	}
}
