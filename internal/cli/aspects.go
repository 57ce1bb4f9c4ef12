package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/facetlabs/facet/internal/aspect"
)

var aspectsCmd = &cobra.Command{
	Use:   "aspects",
	Short: "List the known review aspects",
	Run: func(cmd *cobra.Command, args []string) {
		for _, a := range aspect.Known {
			fmt.Fprintln(os.Stdout, a)
		}
	},
}
