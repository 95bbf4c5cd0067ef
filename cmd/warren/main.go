package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/invoker/pkg/api"
	"github.com/cuemby/invoker/pkg/manager"
	"github.com/cuemby/invoker/pkg/reconciler"
	"github.com/cuemby/invoker/pkg/security"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "invoker",
	Short: "invoker - a clustered function-as-a-service container pool scheduler",
	Long: `invoker runs the action container pool that backs a serverless
platform's function invocations: manager nodes replicate cluster state
over Raft and schedule work onto warm, prewarmed, or freshly created
containers on worker nodes.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"invoker version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(clusterCmd)
}

// Cluster commands
var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage the invoker manager cluster",
}

var clusterInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new cluster with this node as the first manager",
	Long: `Initialize a new cluster with this node as the first manager.

This command starts the manager in single-node mode, which will
automatically form a Raft quorum once additional managers join.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		apiAddr, _ := cmd.Flags().GetString("api-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")

		fmt.Println("Initializing cluster...")
		fmt.Printf("  Node ID: %s\n", nodeID)
		fmt.Printf("  Raft Address: %s\n", bindAddr)
		fmt.Printf("  API Address: %s\n", apiAddr)
		fmt.Printf("  Data Directory: %s\n", dataDir)
		fmt.Println()

		mgr, err := manager.NewManager(&manager.Config{
			NodeID:   nodeID,
			BindAddr: bindAddr,
			DataDir:  dataDir,
		})
		if err != nil {
			return fmt.Errorf("failed to create manager: %v", err)
		}

		if err := mgr.Bootstrap(); err != nil {
			return fmt.Errorf("failed to bootstrap cluster: %v", err)
		}
		fmt.Println("✓ Cluster initialized successfully")

		ca := security.NewCertAuthority(mgr.Store())
		if err := ca.LoadFromStore(); err != nil {
			if err := ca.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize certificate authority: %v", err)
			}
			if err := ca.SaveToStore(); err != nil {
				return fmt.Errorf("failed to persist certificate authority: %v", err)
			}
		}
		fmt.Println("✓ Certificate authority ready")

		recon := reconciler.NewReconciler(mgr)
		recon.Start()
		fmt.Println("✓ Reconciler started")

		apiServer := api.NewServer(mgr, ca)
		errCh := make(chan error, 1)
		go func() {
			if err := apiServer.Start(apiAddr); err != nil {
				errCh <- fmt.Errorf("API server error: %v", err)
			}
		}()

		fmt.Println()
		fmt.Println("Manager is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}

		recon.Stop()
		_ = apiServer.Stop()
		if err := mgr.Shutdown(); err != nil {
			return fmt.Errorf("failed to shutdown: %v", err)
		}

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	clusterCmd.AddCommand(clusterInitCmd)

	clusterInitCmd.Flags().String("node-id", "manager-1", "Unique node ID")
	clusterInitCmd.Flags().String("bind-addr", "127.0.0.1:7946", "Address for Raft communication")
	clusterInitCmd.Flags().String("api-addr", "127.0.0.1:8443", "Address for the control-plane API")
	clusterInitCmd.Flags().String("data-dir", "./invoker-data", "Data directory for cluster state")
}
