package main

import (
	"os"

	"github.com/spf13/cobra"
)

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captionbot",
		Short: "Telegram media caption bot",
		Long: "captionbot batches incoming Telegram media per conversation and\n" +
			"re-sends it with captions rewritten by a selectable caption mode.",
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
