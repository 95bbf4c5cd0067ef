package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/invoker/pkg/action"
	"github.com/cuemby/invoker/pkg/client"
	"github.com/cuemby/invoker/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply an action or prewarm configuration from a YAML file",
	Long: `Apply a resource manifest from a YAML file.

Examples:
  # Deploy an action
  invoker apply -f action.yaml

  # Set the cluster's prewarm configuration
  invoker apply -f prewarm.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	applyCmd.Flags().String("manager", "localhost:8443", "Manager API address")
	applyCmd.Flags().String("token", "", "Join token, if no cached CLI certificate exists yet")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// resource is a generic envelope; spec is kind-specific and decoded again
// into actionSpec or prewarmSpec once Kind is known.
type resource struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   resourceMetadata `yaml:"metadata"`
	Spec       yaml.Node        `yaml:"spec"`
}

type resourceMetadata struct {
	Namespace string `yaml:"namespace"`
	Name      string `yaml:"name"`
}

type actionSpec struct {
	Kind      string `yaml:"kind"`
	Revision  string `yaml:"revision"`
	MemoryMB  int64  `yaml:"memoryMB"`
	TimeoutMs int64  `yaml:"timeoutMs"`
}

type prewarmSpec struct {
	Entries []prewarmEntrySpec `yaml:"entries"`
}

type prewarmEntrySpec struct {
	Kind     string `yaml:"kind"`
	Count    int    `yaml:"count"`
	MemoryMB int64  `yaml:"memoryMB"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	managerAddr, _ := cmd.Flags().GetString("manager")
	token, _ := cmd.Flags().GetString("token")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}

	var res resource
	if err := yaml.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("failed to parse YAML: %v", err)
	}

	c, err := dialManager(managerAddr, token)
	if err != nil {
		return err
	}
	defer c.Close()

	switch res.Kind {
	case "Action":
		return applyAction(c, &res)
	case "PrewarmConfig":
		return applyPrewarmConfig(c, &res)
	default:
		return fmt.Errorf("unsupported resource kind: %s", res.Kind)
	}
}

// dialManager connects with the cached CLI certificate, falling back to
// bootstrapping one from token if none exists yet.
func dialManager(managerAddr, token string) (*client.Client, error) {
	if token != "" {
		return client.NewClientWithToken(managerAddr, token)
	}
	c, err := client.NewClient(managerAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to manager: %v (pass --token on first use)", err)
	}
	return c, nil
}

func applyAction(c *client.Client, res *resource) error {
	var spec actionSpec
	if err := res.Spec.Decode(&spec); err != nil {
		return fmt.Errorf("failed to decode action spec: %v", err)
	}
	if res.Metadata.Namespace == "" || res.Metadata.Name == "" {
		return fmt.Errorf("action metadata requires namespace and name")
	}
	if spec.Revision == "" {
		return fmt.Errorf("action spec requires a revision")
	}

	manifest := &types.ActionManifest{
		Namespace: res.Metadata.Namespace,
		Name:      res.Metadata.Name,
		Revision:  spec.Revision,
		Kind:      action.ExecKind(spec.Kind),
		MemoryMB:  spec.MemoryMB,
		TimeoutMs: spec.TimeoutMs,
		UpdatedAt: time.Now(),
	}

	fmt.Printf("Deploying action %s/%s @ %s\n", manifest.Namespace, manifest.Name, manifest.Revision)
	if err := c.PutActionManifest(cmdCtx(), manifest); err != nil {
		return fmt.Errorf("failed to deploy action: %v", err)
	}
	fmt.Println("✓ Action deployed")
	return nil
}

func applyPrewarmConfig(c *client.Client, res *resource) error {
	var spec prewarmSpec
	if err := res.Spec.Decode(&spec); err != nil {
		return fmt.Errorf("failed to decode prewarm config spec: %v", err)
	}

	entries := make([]*types.PrewarmConfigEntry, 0, len(spec.Entries))
	for _, e := range spec.Entries {
		entries = append(entries, &types.PrewarmConfigEntry{
			Count:     e.Count,
			Kind:      action.ExecKind(e.Kind),
			MemoryMB:  e.MemoryMB,
			UpdatedAt: time.Now(),
		})
	}

	fmt.Printf("Setting prewarm configuration (%d entries)\n", len(entries))
	if err := c.PutPrewarmConfig(cmdCtx(), entries); err != nil {
		return fmt.Errorf("failed to set prewarm configuration: %v", err)
	}
	fmt.Println("✓ Prewarm configuration applied")
	return nil
}
