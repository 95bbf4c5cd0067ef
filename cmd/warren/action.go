package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Manage actions",
}

var actionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployed actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		managerAddr, _ := cmd.Flags().GetString("manager")
		token, _ := cmd.Flags().GetString("token")

		c, err := dialManager(managerAddr, token)
		if err != nil {
			return err
		}
		defer c.Close()

		manifests, err := c.ListActionManifests(cmdCtx())
		if err != nil {
			return fmt.Errorf("failed to list actions: %v", err)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAMESPACE\tNAME\tREVISION\tKIND\tMEMORY(MB)\tTIMEOUT(MS)")
		for _, m := range manifests {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", m.Namespace, m.Name, m.Revision, m.Kind, m.MemoryMB, m.TimeoutMs)
		}
		return tw.Flush()
	},
}

var actionStatusCmd = &cobra.Command{
	Use:   "status NAMESPACE/NAME",
	Short: "Show an action's currently deployed revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		managerAddr, _ := cmd.Flags().GetString("manager")
		token, _ := cmd.Flags().GetString("token")

		c, err := dialManager(managerAddr, token)
		if err != nil {
			return err
		}
		defer c.Close()

		m, err := c.GetActionManifest(cmdCtx(), args[0])
		if err != nil {
			return fmt.Errorf("action %s not found: %v", args[0], err)
		}
		fmt.Printf("%s @ %s (updated %s)\n", m.FullyQualifiedName(), m.Revision, m.UpdatedAt)
		return nil
	},
}

var actionRemoveCmd = &cobra.Command{
	Use:   "remove NAMESPACE/NAME",
	Short: "Remove an action's manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		managerAddr, _ := cmd.Flags().GetString("manager")
		token, _ := cmd.Flags().GetString("token")

		c, err := dialManager(managerAddr, token)
		if err != nil {
			return err
		}
		defer c.Close()

		fmt.Printf("Removing action %s\n", args[0])
		if err := c.RemoveAction(cmdCtx(), args[0]); err != nil {
			return fmt.Errorf("failed to remove action: %v", err)
		}
		fmt.Println("✓ Action removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(actionCmd)
	actionCmd.AddCommand(actionListCmd)
	actionCmd.AddCommand(actionStatusCmd)
	actionCmd.AddCommand(actionRemoveCmd)

	for _, c := range []*cobra.Command{actionListCmd, actionStatusCmd, actionRemoveCmd} {
		c.Flags().String("manager", "localhost:8443", "Manager API address")
		c.Flags().String("token", "", "Join token, if no cached CLI certificate exists yet")
	}
}
