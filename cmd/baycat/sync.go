package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/baycat-io/baycat/pkg/blobstore"
	"github.com/baycat-io/baycat/pkg/checksum"
	"github.com/baycat-io/baycat/pkg/executor"
	"github.com/baycat-io/baycat/pkg/logging"
	"github.com/baycat-io/baycat/pkg/manifest"
	"github.com/baycat-io/baycat/pkg/planner"
	"github.com/baycat-io/baycat/pkg/scanner"
)

type syncOptions struct {
	delete             bool
	dryRun             bool
	reconcile          bool
	overwriteRegressed bool
	excludes           []string
	poolSize           int
	concurrency        int
	region             string
	profile            string
}

func newSyncCmd() *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync <LocalPath> <S3Uri>",
		Short: "Sync a local tree to s3://bucket/prefix",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindSyncConfig(cmd, &opts)
			return runSync(cmd.Context(), args[0], args[1], &opts)
		},
	}

	cmd.Flags().BoolVar(&opts.delete, "delete", false, "Delete remote files missing locally")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show planned operations without executing")
	cmd.Flags().BoolVar(&opts.reconcile, "reconcile", false, "List actual bucket contents and heal manifest drift first")
	cmd.Flags().BoolVar(&opts.overwriteRegressed, "overwrite-regressed", false, "Overwrite remote files that are newer than local")
	cmd.Flags().StringSliceVar(&opts.excludes, "exclude", nil, "Exclude patterns (doublestar globs, repeatable)")
	cmd.Flags().IntVar(&opts.poolSize, "pool-size", 0, "Checksum worker pool size (default: persisted in manifest)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Concurrent blob operations")
	cmd.Flags().StringVar(&opts.region, "region", "", "AWS region")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "AWS profile")

	return cmd
}

// bindSyncConfig fills unset flags from the config file / environment.
func bindSyncConfig(cmd *cobra.Command, opts *syncOptions) {
	if !cmd.Flags().Changed("pool-size") && viper.IsSet("pool_size") {
		opts.poolSize = viper.GetInt("pool_size")
	}
	if !cmd.Flags().Changed("concurrency") {
		opts.concurrency = viper.GetInt("concurrency")
	}
	if !cmd.Flags().Changed("region") {
		opts.region = viper.GetString("region")
	}
	if !cmd.Flags().Changed("profile") {
		opts.profile = viper.GetString("profile")
	}
	if !cmd.Flags().Changed("exclude") && viper.IsSet("exclude") {
		opts.excludes = viper.GetStringSlice("exclude")
	}
}

func runSync(ctx context.Context, localPath, s3URI string, opts *syncOptions) error {
	bucket, prefix, err := blobstore.ParseURI(s3URI)
	if err != nil {
		return err
	}

	localStore := manifest.NewLocalStore(localPath)
	if err := localStore.Lock(); err != nil {
		return err
	}
	defer localStore.Unlock()

	prev, err := localStore.Load(localPath)
	if err != nil {
		return err
	}

	poolSize := opts.poolSize
	if poolSize <= 0 {
		poolSize = prev.PoolSize
	}
	pool := checksum.NewPool(poolSize)

	scn, err := scanner.New(localPath, opts.excludes, pool)
	if err != nil {
		return err
	}

	start := time.Now()
	slog.Info("scanning", "root", scn.Root())
	local, warnings, err := scn.Scan(ctx, prev)
	if err != nil {
		return err
	}
	local.PoolSize = persistPoolSize(prev, pool)
	if len(warnings) > 0 {
		slog.Warn("scan finished with warnings", "count", len(warnings))
	}

	if !opts.dryRun {
		if err := localStore.Save(local); err != nil {
			return err
		}
	}

	store, err := newS3Store(ctx, bucket, opts.region, opts.profile)
	if err != nil {
		return err
	}
	remoteStore := manifest.NewRemoteStore(store, prefix)

	remote, err := remoteStore.Fetch(ctx)
	if err != nil {
		return err
	}
	if opts.reconcile {
		remote, err = planner.Reconcile(ctx, store, prefix, remote)
		if err != nil {
			return err
		}
	}

	ops := planner.Diff(local, remote, planner.Options{
		DeleteEnabled:      opts.delete,
		OverwriteRegressed: opts.overwriteRegressed,
		Excludes:           opts.excludes,
	})
	if len(ops) == 0 {
		slog.Info("already in sync", "entries", local.Len())
		return nil
	}

	if opts.dryRun {
		for _, op := range ops {
			fmt.Printf("%-12s %s (%s)\n", op.Kind, op.Path, op.Reason)
		}
		fmt.Printf("\n%d operations planned\n", len(ops))
		return nil
	}

	exec := executor.New(store, remoteStore, scn.Root(), prefix, opts.concurrency)
	report, _ := exec.Execute(ctx, ops, remote)
	logging.PrintSummary(report, time.Since(start), flagQuiet)

	if report.CommitErr != nil {
		return fmt.Errorf("remote manifest commit failed: %w", report.CommitErr)
	}
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d operations failed", len(report.Failures))
	}
	return nil
}

func newS3Store(ctx context.Context, bucket, region, profile string) (*blobstore.S3, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return blobstore.NewS3(cfg, bucket), nil
}
