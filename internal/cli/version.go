package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robdennis/trappist/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the trappist version",
		// No store access needed.
		PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("trappist %s\n", version.GetVersion())
		},
	}
}
