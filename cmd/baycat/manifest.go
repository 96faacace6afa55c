package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/baycat-io/baycat/pkg/checksum"
	"github.com/baycat-io/baycat/pkg/manifest"
	"github.com/baycat-io/baycat/pkg/scanner"
)

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Create and maintain local manifests",
	}
	cmd.AddCommand(newManifestCreateCmd())
	cmd.AddCommand(newManifestUpdateCmd())
	return cmd
}

func newManifestCreateCmd() *cobra.Command {
	var poolSize int
	var outFile string
	var excludes []string

	cmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Scan a tree and write a fresh manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]
			if !cmd.Flags().Changed("pool-size") && viper.IsSet("pool_size") {
				poolSize = viper.GetInt("pool_size")
			}

			target := outFile
			if target == "" {
				target = manifest.LocalPath(root)
			}
			if _, err := os.Stat(target); err == nil {
				return fmt.Errorf("manifest already exists at %s (use 'manifest update')", target)
			}

			pool := checksum.NewPool(poolSize)
			m, warnings, err := scanTree(cmd, root, excludes, pool)
			if err != nil {
				return err
			}
			// The pool size chosen here is persisted as the default
			// for later updates of this manifest.
			m.PoolSize = pool.Size

			if err := saveManifest(root, outFile, m); err != nil {
				return err
			}
			slog.Info("manifest created", "entries", m.Len(), "warnings", len(warnings), "path", target)
			return nil
		},
	}

	cmd.Flags().IntVar(&poolSize, "pool-size", 0, "Checksum worker pool size (persisted in the manifest)")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the manifest to this file instead of <path>/.baycat/manifest")
	cmd.Flags().StringSliceVar(&excludes, "exclude", nil, "Exclude patterns (doublestar globs, repeatable)")
	return cmd
}

func newManifestUpdateCmd() *cobra.Command {
	var poolSize int
	var excludes []string

	cmd := &cobra.Command{
		Use:   "update <path>",
		Short: "Refresh an existing manifest against the filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]

			store := manifest.NewLocalStore(root)
			if err := store.Lock(); err != nil {
				return err
			}
			defer store.Unlock()

			prev, err := store.Load(root)
			if err != nil {
				return err
			}

			// A one-off --pool-size overrides the persisted default
			// without replacing it.
			size := poolSize
			if size <= 0 {
				size = prev.PoolSize
			}
			pool := checksum.NewPool(size)

			scn, err := scanner.New(root, excludes, pool)
			if err != nil {
				return err
			}
			m, warnings, err := scn.Scan(cmd.Context(), prev)
			if err != nil {
				return err
			}
			m.PoolSize = persistPoolSize(prev, pool)

			if err := store.Save(m); err != nil {
				return err
			}
			slog.Info("manifest updated", "entries", m.Len(), "warnings", len(warnings))
			return nil
		},
	}

	cmd.Flags().IntVar(&poolSize, "pool-size", 0, "One-off checksum pool size override")
	cmd.Flags().StringSliceVar(&excludes, "exclude", nil, "Exclude patterns (doublestar globs, repeatable)")
	return cmd
}

// persistPoolSize returns the pool size to store in a refreshed
// manifest: the previously persisted value, so a one-off --pool-size
// override never becomes sticky, or the pool actually used when none
// was ever recorded.
func persistPoolSize(prev *manifest.Manifest, pool *checksum.Pool) int {
	if prev.PoolSize > 0 {
		return prev.PoolSize
	}
	return pool.Size
}

func scanTree(cmd *cobra.Command, root string, excludes []string, pool *checksum.Pool) (*manifest.Manifest, []scanner.Warning, error) {
	scn, err := scanner.New(root, excludes, pool)
	if err != nil {
		return nil, nil, err
	}
	return scn.Scan(cmd.Context(), manifest.New(root))
}

func saveManifest(root, outFile string, m *manifest.Manifest) error {
	if outFile == "" {
		return manifest.NewLocalStore(root).Save(m)
	}
	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("create manifest file: %w", err)
	}
	defer f.Close()
	return manifest.Encode(f, m)
}
