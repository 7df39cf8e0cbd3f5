package cli

import (
	"fmt"

	"github.com/ppiankov/decadal/internal/classify"
	"github.com/spf13/cobra"
)

// decadesCmd prints the decade range table
var decadesCmd = &cobra.Command{
	Use:   "decades",
	Short: "List the decade buckets and their year ranges",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-10s  %-9s  %s\n", "BUCKET", "YEARS", "BOUNDS (exclusive)")
		for _, r := range classify.DefaultDecades() {
			fmt.Fprintf(out, "%-10s  %d-%d  %d < year < %d\n", r.Name, r.First(), r.Last(), r.Lower, r.Upper)
		}
	},
}

func init() {
	rootCmd.AddCommand(decadesCmd)
}
