package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/caffeineduck/hotlua/resource"
	"github.com/spf13/cobra"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Manage hot-patch script bundles",
	Long: `Create and inspect SQLite bundles of script resources.

A bundle is searched before the scripts directory, so shipping a bundle
patches scripts without touching the installed files. Every stored path
carries a version that increases each time it is replaced.`,
}

var bundlePackCmd = &cobra.Command{
	Use:   "pack <dir>",
	Short: "Import a directory tree into the bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundlePack,
}

var bundleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bundle entries",
	Args:  cobra.NoArgs,
	RunE:  runBundleList,
}

var bundleCatCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print one resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundleCat,
}

func init() {
	bundleCmd.PersistentFlags().StringP("file", "f", "", "Bundle file (default: scripts.bundle from config)")
	bundlePackCmd.Flags().String("prefix", "", "Resource path prefix for imported files")
	bundleCmd.AddCommand(bundlePackCmd, bundleListCmd, bundleCatCmd)
	rootCmd.AddCommand(bundleCmd)
}

func openBundle(cmd *cobra.Command) (*resource.Bundle, error) {
	file, _ := cmd.Flags().GetString("file")
	if file == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		file = cfg.BundlePath()
	}
	if file == "" {
		return nil, fmt.Errorf("no bundle file: use --file or set scripts.bundle")
	}
	return resource.OpenBundle(file)
}

func runBundlePack(cmd *cobra.Command, args []string) error {
	prefix, _ := cmd.Flags().GetString("prefix")
	b, err := openBundle(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	n, err := b.Pack(args[0], prefix)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "packed %d files\n", n)
	return nil
}

func runBundleList(cmd *cobra.Command, args []string) error {
	b, err := openBundle(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	entries, err := b.List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tSIZE\tVERSION\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", e.Path, e.Size, e.Version, e.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runBundleCat(cmd *cobra.Command, args []string) error {
	b, err := openBundle(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	data, err := b.SyncLoad(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
