// meshcore-node runs a single mesh participant: identity, radio transport,
// flood routing, channels, the async file/crypto worker, and the optional
// remote control listener, all driven by one ~100Hz tick loop.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meshcore/meshcore-go/internal/config"
	"github.com/meshcore/meshcore-go/internal/node"
)

var (
	configFile string
	rootCmd    = &cobra.Command{
		Use:   "meshcore-node",
		Short: "meshcore-node runs a single MeshCore mesh participant",
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the node",
		RunE:  runNode,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("meshcore-node v0.1.0")
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/meshcore/node.yaml", "Configuration file path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	n, err := node.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	runErr := n.Run(ctx)

	if err := n.Close(); err != nil {
		log.Printf("error during shutdown: %v", err)
	}

	if runErr != nil {
		return fmt.Errorf("node run failed: %w", runErr)
	}
	log.Println("shutdown complete")
	return nil
}
