package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/invoker/pkg/manager"
)

// cmdCtx is the context for one-shot CLI requests against the
// control-plane API; the http.Client's own 10s timeout bounds the call.
func cmdCtx() context.Context {
	return context.Background()
}

var clusterJoinTokenCmd = &cobra.Command{
	Use:   "join-token [worker|manager]",
	Short: "Generate a join token for workers or managers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := args[0]
		if role != "worker" && role != "manager" {
			return fmt.Errorf("role must be 'worker' or 'manager'")
		}
		managerAddr, _ := cmd.Flags().GetString("manager")
		token, _ := cmd.Flags().GetString("token")

		c, err := dialManager(managerAddr, token)
		if err != nil {
			return err
		}
		defer c.Close()

		tok, err := c.GenerateJoinToken(cmdCtx(), role)
		if err != nil {
			return fmt.Errorf("failed to generate join token: %v", err)
		}
		fmt.Println(tok)
		return nil
	},
}

var clusterJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join this node to an existing cluster as an additional manager",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		leaderAddr, _ := cmd.Flags().GetString("leader-addr")
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			return fmt.Errorf("--token is required")
		}
		if leaderAddr == "" {
			return fmt.Errorf("--leader-addr is required")
		}

		mgr, err := manager.NewManager(&manager.Config{
			NodeID:   nodeID,
			BindAddr: bindAddr,
			DataDir:  dataDir,
		})
		if err != nil {
			return fmt.Errorf("failed to create manager: %v", err)
		}

		fmt.Printf("Joining cluster via %s...\n", leaderAddr)
		if err := mgr.Join(leaderAddr, token); err != nil {
			return fmt.Errorf("failed to join cluster: %v", err)
		}
		fmt.Println("✓ Joined cluster")
		return nil
	},
}

func init() {
	clusterCmd.AddCommand(clusterJoinTokenCmd)
	clusterCmd.AddCommand(clusterJoinCmd)

	clusterJoinTokenCmd.Flags().String("manager", "localhost:8443", "Manager API address")
	clusterJoinTokenCmd.Flags().String("token", "", "Join token, if no cached CLI certificate exists yet")

	clusterJoinCmd.Flags().String("node-id", "", "Unique node ID")
	clusterJoinCmd.Flags().String("bind-addr", "127.0.0.1:7946", "Address for Raft communication")
	clusterJoinCmd.Flags().String("data-dir", "./invoker-data", "Data directory for cluster state")
	clusterJoinCmd.Flags().String("leader-addr", "", "Address of an existing manager's control-plane API")
	clusterJoinCmd.Flags().String("token", "", "Join token from an existing manager")
	_ = clusterJoinCmd.MarkFlagRequired("node-id")
	_ = clusterJoinCmd.MarkFlagRequired("leader-addr")
}
