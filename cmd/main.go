package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/orgball2608/xhs-likes-manager/internal/app"
	"github.com/orgball2608/xhs-likes-manager/internal/command"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories/post"
	"github.com/orgball2608/xhs-likes-manager/internal/review"
	"github.com/orgball2608/xhs-likes-manager/internal/tagger"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	pkgerrors "github.com/orgball2608/xhs-likes-manager/pkg/errors"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath  string
	reinitStore bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	logger.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if hint := pkgerrors.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "xhs",
		Short:         "Fetch, tag and review your Xiaohongshu likes and bookmarks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default ./config.yaml if present)")
	root.PersistentFlags().BoolVar(&flags.reinitStore, "reinit-store", false, "move a corrupt record store aside and start empty")

	root.AddCommand(
		loginCmd(flags),
		fetchCmd(flags),
		tagCmd(flags),
		statsCmd(flags),
		listCmd(flags),
		extractPapersCmd(flags),
		unlikeCmd(flags),
		reviewCmd(flags),
		exportCmd(flags),
		watchCmd(flags),
		configCmd(),
	)
	return root
}

// run starts the application for one command and stops it afterwards, so
// the record store and browser are always closed.
func run(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, client command.Client) error) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return pkgerrors.WrapWithCode(err, pkgerrors.CodeConfig, "load config")
	}

	var client command.Client
	a := app.New(cfg, post.Options{ReinitCorrupt: flags.reinitStore}, &client)

	ctx := cmd.Context()
	if err := a.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx, client)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.StopTimeout())
	defer cancel()
	if err := a.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func loginCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Open a browser window to log in and keep the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, flags, func(ctx context.Context, client command.Client) error {
				uid, err := client.Login(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
				if uid != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", uid)
				}
				return nil
			})
		},
	}
}

func fetchCmd(flags *globalFlags) *cobra.Command {
	var full bool
	c := &cobra.Command{
		Use:       "fetch [likes|bookmarks|all]",
		Short:     "Scroll the like and bookmark feeds and store new posts",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"likes", "bookmarks", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var kinds []domain.Kind
			if len(args) == 1 && args[0] != "all" {
				kind, err := domain.ParseKind(args[0])
				if err != nil {
					return err
				}
				kinds = []domain.Kind{kind}
			}
			return run(cmd, flags, func(ctx context.Context, client command.Client) error {
				summary, err := client.Fetch(ctx, command.FetchOptions{Kinds: kinds, Full: full})
				command.PrintFetch(cmd.OutOrStdout(), summary)
				return err
			})
		},
	}
	c.Flags().BoolVar(&full, "full", false, "keep scrolling past posts that are already stored")
	return c
}

func tagCmd(flags *globalFlags) *cobra.Command {
	var force bool
	c := &cobra.Command{
		Use:   "tag",
		Short: "Apply keyword rules to untagged posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, flags, func(ctx context.Context, client command.Client) error {
				res, err := client.Tag(ctx, tagger.Options{Force: force})
				if err != nil {
					return err
				}
				command.PrintTag(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	c.Flags().BoolVar(&force, "force", false, "re-run the rules on every post, keeping manual tags")
	return c
}

func statsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show counts per collection, status and tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, flags, func(ctx context.Context, client command.Client) error {
				stats, err := client.Stats(ctx)
				if err != nil {
					return err
				}
				command.PrintStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
}

func listCmd(flags *globalFlags) *cobra.Command {
	var (
		opts command.ListOptions
		kind string
	)
	c := &cobra.Command{
		Use:   "list",
		Short: "List stored posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kind != "" {
				k, err := domain.ParseKind(kind)
				if err != nil {
					return err
				}
				opts.Kind = k
			}
			return run(cmd, flags, func(ctx context.Context, client command.Client) error {
				records, err := client.List(ctx, opts)
				if err != nil {
					return err
				}
				command.PrintList(cmd.OutOrStdout(), records)
				return nil
			})
		},
	}
	c.Flags().StringVar(&opts.Tag, "tag", "", "only posts carrying this tag")
	c.Flags().StringVar(&kind, "kind", "", "likes or bookmarks")
	c.Flags().BoolVar(&opts.IncludeRemoved, "include-removed", false, "show posts removed during review")
	return c
}

func extractPapersCmd(flags *globalFlags) *cobra.Command {
	var opts command.ExtractOptions
	c := &cobra.Command{
		Use:   "extract-papers",
		Short: "Find arXiv papers mentioned by AI posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, flags, func(ctx context.Context, client command.Client) error {
				res, err := client.ExtractPapers(ctx, opts)
				command.PrintExtract(cmd.OutOrStdout(), res)
				return err
			})
		},
	}
	c.Flags().BoolVar(&opts.Force, "force", false, "re-process posts that were already extracted")
	c.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "use stored text only, do not open note pages")
	return c
}

func unlikeCmd(flags *globalFlags) *cobra.Command {
	var pending bool
	c := &cobra.Command{
		Use:   "unlike [id]",
		Short: "Withdraw a like on the site and mark the post removed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := command.UnlikeOptions{Pending: pending}
			if len(args) == 1 {
				opts.ID = args[0]
			}
			if opts.ID == "" && !opts.Pending {
				return fmt.Errorf("give a post id or --pending")
			}
			return run(cmd, flags, func(ctx context.Context, client command.Client) error {
				summary, err := client.Unlike(ctx, opts)
				command.PrintUnlike(cmd.OutOrStdout(), summary)
				return err
			})
		},
	}
	c.Flags().BoolVar(&pending, "pending", false, "unlike every post removed during review")
	return c
}

func reviewCmd(flags *globalFlags) *cobra.Command {
	var mode, tag string
	c := &cobra.Command{
		Use:   "review",
		Short: "Walk through posts one at a time and keep, remove, tag or annotate them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := review.ParseMode(mode)
			if err != nil {
				return err
			}
			return run(cmd, flags, func(ctx context.Context, client command.Client) error {
				_, err := client.Review(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), review.Options{Mode: m, Tag: tag})
				return err
			})
		},
	}
	c.Flags().StringVar(&mode, "mode", string(review.ModeAI), "ai, other or all")
	c.Flags().StringVar(&tag, "tag", "", "only posts carrying this tag")
	return c
}

func exportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the markdown views of both collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, flags, func(ctx context.Context, client command.Client) error {
				paths, err := client.Export(ctx)
				for _, p := range paths {
					fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", p)
				}
				return err
			})
		},
	}
}

func watchCmd(flags *globalFlags) *cobra.Command {
	var opts command.WatchOptions
	c := &cobra.Command{
		Use:   "watch",
		Short: "Fetch and tag on a schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, flags, func(ctx context.Context, client command.Client) error {
				return client.Watch(ctx, opts)
			})
		},
	}
	c.Flags().StringVar(&opts.Cron, "cron", "", "cron expression, overrides schedule.cron")
	c.Flags().BoolVar(&opts.RunNow, "now", false, "run once immediately, then follow the schedule")
	return c
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Describe the environment variables the config understands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.Description())
			return nil
		},
	}
}
