package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var prewarmCmd = &cobra.Command{
	Use:   "prewarm",
	Short: "Inspect the cluster's prewarm configuration",
}

var prewarmGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the cluster's current prewarm configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		managerAddr, _ := cmd.Flags().GetString("manager")
		token, _ := cmd.Flags().GetString("token")

		c, err := dialManager(managerAddr, token)
		if err != nil {
			return err
		}
		defer c.Close()

		entries, err := c.GetPrewarmConfig(cmdCtx())
		if err != nil {
			return fmt.Errorf("failed to fetch prewarm configuration: %v", err)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tCOUNT\tMEMORY(MB)\tUPDATED")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", e.Kind, e.Count, e.MemoryMB, e.UpdatedAt)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(prewarmCmd)
	prewarmCmd.AddCommand(prewarmGetCmd)

	prewarmGetCmd.Flags().String("manager", "localhost:8443", "Manager API address")
	prewarmGetCmd.Flags().String("token", "", "Join token, if no cached CLI certificate exists yet")
}
