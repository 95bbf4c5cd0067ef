package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage nodes",
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List nodes in the cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		managerAddr, _ := cmd.Flags().GetString("manager")
		token, _ := cmd.Flags().GetString("token")

		c, err := dialManager(managerAddr, token)
		if err != nil {
			return err
		}
		defer c.Close()

		nodes, err := c.ListNodes(cmdCtx())
		if err != nil {
			return fmt.Errorf("failed to list nodes: %v", err)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tROLE\tADDRESS\tSTATUS\tLAST HEARTBEAT")
		for _, n := range nodes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.ID, n.Role, n.Address, n.Status, n.LastHeartbeat)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(nodeCmd)
	nodeCmd.AddCommand(nodeListCmd)

	nodeListCmd.Flags().String("manager", "localhost:8443", "Manager API address")
	nodeListCmd.Flags().String("token", "", "Join token, if no cached CLI certificate exists yet")
}
