// Command fusionner watches a set of topic references on a remote Git
// repository and keeps speculative merge commits against a target reference
// published under refs/fusionner/, recorded via Git notes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lawliet89/fusionner/internal/config"
	"github.com/lawliet89/fusionner/internal/gitrepo"
	"github.com/lawliet89/fusionner/internal/loop"
	"github.com/lawliet89/fusionner/internal/merger"
	"github.com/lawliet89/fusionner/internal/watch"
)

type options struct {
	watchRegex     []string
	remote         string
	notesNamespace string
	targetRef      string
	logLevel       string
}

func main() {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "fusionner <configuration-file> (<watch-ref> | --watch-regex=<regex>)...",
		Short: "Pre-compute speculative merges between watched branches and a target branch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, opts, args)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringArrayVar(&opts.watchRegex, "watch-regex", nil, "Regular expression matching watched reference names (repeatable)")
	cmd.Flags().StringVar(&opts.remote, "remote", "origin", "Name of the remote to use")
	cmd.Flags().StringVar(&opts.notesNamespace, "notes-namespace", merger.DefaultNamespace, "Git notes namespace fusionner records merge metadata under")
	cmd.Flags().StringVar(&opts.targetRef, "target-reference", "HEAD", "Target reference to merge watched references against")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level: trace, debug, info, warn, or error")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		logrus.Errorf("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cobra.Command, opts *options, args []string) error {
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("unknown log level %q", opts.logLevel)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	configFile := args[0]
	watchArgs := args[1:]
	if len(watchArgs) == 0 && len(opts.watchRegex) == 0 {
		return fmt.Errorf("at least one <watch-ref> or --watch-regex is required")
	}

	cfg, err := config.ReadFile(configFile)
	if err != nil {
		return err
	}

	// The configuration file may set defaults for remote/notes-namespace/
	// target-reference; an explicitly-passed CLI flag still wins
	// (SPEC_FULL.md §6).
	remoteName := overrideFromConfig(cmd, "remote", opts.remote, cfg.Repository.Remote)
	notesNamespace := overrideFromConfig(cmd, "notes-namespace", opts.notesNamespace, cfg.Repository.NotesNamespace)
	targetRefInput := overrideFromConfig(cmd, "target-reference", opts.targetRef, cfg.Repository.TargetRef)

	watchRefs, err := watch.New(watchArgs, opts.watchRegex)
	if err != nil {
		return fmt.Errorf("failed to compile watch reference regex: %w", err)
	}
	logrus.Infof("Watch references: %v (regex: %v)", watchArgs, opts.watchRegex)

	repo, err := gitrepo.CloneOrOpen(ctx, cfg.Repository)
	if err != nil {
		return err
	}

	remote, err := repo.Remote(remoteName)
	if err != nil {
		return err
	}

	m := merger.New(repo, remote, notesNamespace, nil)
	if err := m.AddNoteRefspecs(); err != nil {
		return err
	}
	if err := merger.AddDefaultRefspecs(remote); err != nil {
		return err
	}

	for _, spec := range cfg.Repository.FetchRefspecs {
		if err := remote.AddFetchRefspec(spec); err != nil {
			return err
		}
	}
	for _, spec := range cfg.Repository.PushRefspecs {
		if err := remote.AddPushRefspec(spec); err != nil {
			return err
		}
	}

	targetRef, err := remote.ResolveTargetRef(ctx, targetRefInput)
	if err != nil {
		return err
	}
	logrus.Infof("Resolved target reference: %s", targetRef)

	driver := &loop.Driver{
		Remote:    remote,
		Merger:    m,
		WatchRefs: watchRefs,
		TargetRef: targetRef,
		Interval:  cfg.IntervalDuration(),
	}

	err = driver.Run(ctx)
	if err != nil && ctx.Err() != nil {
		logrus.Info("Shutting down")
		return nil
	}
	return err
}

// overrideFromConfig returns flagValue if the named flag was explicitly
// passed on the command line, else configValue if the configuration file
// set it, else flagValue (the flag's own default).
func overrideFromConfig(cmd *cobra.Command, flagName, flagValue, configValue string) string {
	if cmd.Flags().Changed(flagName) || configValue == "" {
		return flagValue
	}
	return configValue
}
