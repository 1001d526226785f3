package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newsroomd/newsroom/internal/config"
	"github.com/newsroomd/newsroom/internal/debuglog"
	"github.com/newsroomd/newsroom/internal/feed"
	"github.com/newsroomd/newsroom/internal/news"
	"github.com/newsroomd/newsroom/internal/storage"
)

// Version is the version of the application, set at build time
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	store   *storage.Store
	manager *news.Manager
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	debuglog.Close()
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		dbPath     string
	)

	root := &cobra.Command{
		Use:           "newsroomd",
		Short:         "Feed ingestion engine: fetch, dedup and fan out news to subscribers",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database file (overrides config)")

	open := func() (*app, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if dbPath != "" {
			cfg.Database.Path = dbPath
		}
		if err := debuglog.Setup(debuglog.ParseLogLevel(cfg.Log.Level), cfg.Log.Path); err != nil {
			return nil, err
		}
		store, err := storage.NewStore(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		return &app{
			cfg:     cfg,
			store:   store,
			manager: news.NewManager(store, feed.NewFetcher(cfg), cfg),
		}, nil
	}

	root.AddCommand(
		newRunCmd(open),
		newRefreshCmd(open),
		newSweepCmd(open),
		newFeedCmd(open),
		newUserCmd(open),
		newGenerateConfigCmd(),
	)
	return root
}

func newRunCmd(open func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the refresh scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			refresh := time.NewTicker(a.cfg.Refresh.Interval)
			defer refresh.Stop()
			sweep := time.NewTicker(a.cfg.Retention.Interval)
			defer sweep.Stop()

			// One immediate cycle so a fresh start is not idle for a
			// full interval.
			if n, err := a.manager.RefreshAllFeeds(ctx); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d feeds\n", n)
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-refresh.C:
					if n, err := a.manager.RefreshAllFeeds(ctx); err != nil {
						debuglog.Logger().Error("refresh cycle failed", "error", err)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d feeds\n", n)
					}
				case <-sweep.C:
					if n, err := a.manager.DeleteReadItems(); err != nil {
						debuglog.Logger().Error("retention sweep failed", "error", err)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "deleted %d items\n", n)
					}
				}
			}
		},
	}
}

func newRefreshCmd(open func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh cycle over all active feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.manager.RefreshAllFeeds(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d feeds\n", n)
			return nil
		},
	}
}

func newSweepCmd(open func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete read news items and expired feed items",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.manager.DeleteReadItems()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d items\n", n)
			return nil
		},
	}
}

func newFeedCmd(open func() (*app, error)) *cobra.Command {
	feedCmd := &cobra.Command{Use: "feed", Short: "Feed commands"}

	feedCmd.AddCommand(&cobra.Command{
		Use:   "info <url>",
		Short: "Look a feed up by URL, fetching and registering it when unknown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			f, err := a.manager.FetchFeedInformationFor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d items, %d subscribers\n",
				f.ID, f.SourceType, f.Title, f.NumberOfItems, f.NumberOfSubscriptions)
			return nil
		},
	})

	feedCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all known feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			feeds, err := a.store.AllFeeds()
			if err != nil {
				return err
			}
			for _, f := range feeds {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", f.ID, f.SourceType, f.Title)
			}
			return nil
		},
	})

	return feedCmd
}

func newUserCmd(open func() (*app, error)) *cobra.Command {
	userCmd := &cobra.Command{Use: "user", Short: "User commands"}

	userCmd.AddCommand(&cobra.Command{
		Use:   "add <email>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			user := &storage.User{ID: storage.NewID(), Email: args[0]}
			if err := a.store.UpsertUser(user); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	})

	userCmd.AddCommand(&cobra.Command{
		Use:   "subscribe <user-id> <feed-id>",
		Short: "Subscribe a user to a feed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			user, err := a.manager.SubscribeUserToFeed(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d unread items\n", user.Email, user.NumberOfUnreadItems)
			return nil
		},
	})

	var newsLimit int
	newsCmd := &cobra.Command{
		Use:   "news <user-id>",
		Short: "List a user's unread news items, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			items, err := a.manager.UnreadNewsItems(args[0], newsLimit)
			if err != nil {
				return err
			}
			for _, item := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
					item.Published.Format("2006-01-02 15:04"), item.FeedTitle, item.Title, item.Link)
			}
			return nil
		},
	}
	newsCmd.Flags().IntVar(&newsLimit, "limit", 50, "Maximum number of items to list")
	userCmd.AddCommand(newsCmd)

	userCmd.AddCommand(&cobra.Command{
		Use:   "unsubscribe <user-id> <feed-id>",
		Short: "Unsubscribe a user from a feed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			user, err := a.manager.UnsubscribeUserFromFeed(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d unread items\n", user.Email, user.NumberOfUnreadItems)
			return nil
		},
	})

	return userCmd
}

func newGenerateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-config <path>",
		Short: "Write the default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateDefaultConfig(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated default configuration at: %s\n", args[0])
			return nil
		},
	}
}
