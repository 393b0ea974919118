// meshcore-kvtool inspects and edits a node's key-value store directly,
// for debugging without a running node.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meshcore/meshcore-go/internal/kvstore"
)

var (
	dbPath  string
	rootCmd = &cobra.Command{
		Use:   "meshcore-kvtool",
		Short: "Inspect and edit a MeshCore node's key-value store",
	}

	getCmd = &cobra.Command{
		Use:   "get <namespace> <key>",
		Short: "Print a value as a hex-encoded byte string",
		Args:  cobra.ExactArgs(2),
		RunE:  runGet,
	}

	putCmd = &cobra.Command{
		Use:   "put <namespace> <key> <hex-value>",
		Short: "Write a hex-encoded byte string under namespace/key",
		Args:  cobra.ExactArgs(3),
		RunE:  runPut,
	}

	dumpCmd = &cobra.Command{
		Use:   "dump <namespace>",
		Short: "List every key in a namespace",
		Args:  cobra.ExactArgs(1),
		RunE:  runDump,
	}

	clearCmd = &cobra.Command{
		Use:   "clear <namespace>",
		Short: "Delete every key in a namespace",
		Args:  cobra.ExactArgs(1),
		RunE:  runClear,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "database", "d", "/var/lib/meshcore/node.db", "Key-value store file path")
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(clearCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*kvstore.Store, error) {
	return kvstore.Open(dbPath)
}

func runGet(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	value, err := store.GetBytes(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(value))
	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	value, err := hex.DecodeString(args[2])
	if err != nil {
		return fmt.Errorf("invalid hex value: %w", err)
	}
	return store.PutBytes(args[0], args[1], value)
}

func runDump(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	keys, err := store.Keys(args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE (hex)")
	fmt.Fprintln(w, "---\t-----------")
	for _, key := range keys {
		value, err := store.GetBytes(args[0], key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", key, hex.EncodeToString(value))
	}
	return w.Flush()
}

func runClear(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Clear(args[0])
}
