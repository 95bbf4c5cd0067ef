package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/invoker/pkg/types"
	invokerworker "github.com/cuemby/invoker/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run this node as a worker hosting the container pool",
}

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the worker daemon",
	Long: `Start the worker daemon: registers this node with the manager,
builds the Pool Supervisor from the cluster's action manifests and
prewarm configuration, and serves activations against a containerd
runtime.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		managerAddr, _ := cmd.Flags().GetString("manager")
		token, _ := cmd.Flags().GetString("token")
		socket, _ := cmd.Flags().GetString("containerd-socket")
		maxActive, _ := cmd.Flags().GetInt("max-active-containers")

		w, err := invokerworker.NewWorker(&invokerworker.Config{
			NodeID:              nodeID,
			ManagerAddr:         managerAddr,
			JoinToken:           token,
			ContainerdSocket:    socket,
			MaxActiveContainers: maxActive,
		})
		if err != nil {
			return fmt.Errorf("failed to create worker: %v", err)
		}

		resources := &types.NodeResources{
			CPUCores:            runtime.NumCPU(),
			MaxActiveContainers: maxActive,
		}
		if err := w.Start(resources); err != nil {
			return fmt.Errorf("failed to start worker: %v", err)
		}
		fmt.Printf("✓ Worker %s running against manager %s\n", nodeID, managerAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down worker...")
		return w.Stop()
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerRunCmd)

	workerRunCmd.Flags().String("node-id", "", "Unique node ID")
	workerRunCmd.Flags().String("manager", "localhost:8443", "Manager API address")
	workerRunCmd.Flags().String("token", "", "Join token for this worker's certificate bootstrap")
	workerRunCmd.Flags().String("containerd-socket", "", "containerd socket path (default /run/containerd/containerd.sock)")
	workerRunCmd.Flags().Int("max-active-containers", 32, "Maximum number of active containers this worker will run")
	_ = workerRunCmd.MarkFlagRequired("node-id")
	_ = workerRunCmd.MarkFlagRequired("token")
}
