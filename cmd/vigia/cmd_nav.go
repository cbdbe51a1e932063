package main

import (
	"context"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/ce"
	"github.com/otavio/vigia/internal/component"
	"github.com/otavio/vigia/internal/config"
	"github.com/otavio/vigia/internal/db"
	"github.com/otavio/vigia/internal/history"
	"github.com/otavio/vigia/internal/nav"
)

var (
	navBranch    string
	navPath      string
	navServer    string
	navNoHistory bool
)

var navCmd = &cobra.Command{
	Use:     "nav <component>",
	Short:   "Interactive navigator showing a component's analysis status",
	Example: "  vigia nav my-project\n  vigia nav my-project:src --branch develop --path /component_measures",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, closeLog, err := setupLogging(cfg, io.Discard)
		if err != nil {
			return err
		}
		defer closeLog()

		server := navServer
		if server == "" {
			server = cfg.ServerURL
		}

		src, err := navSource(cfg, server)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		defer cancel()
		comp, branches, err := src.load(ctx, args[0])
		if err != nil {
			return err
		}

		opts := nav.Options{
			Tasks:           src.tasks,
			Branches:        src.branches,
			Reporter:        nav.LogReporter{Logger: logger},
			RefreshInterval: cfg.RefreshInterval,
			QueryTimeout:    cfg.HTTPTimeout,
		}
		if !navNoHistory {
			store, err := history.Open(cfg.HistoryPath, cfg.HistorySize, logger)
			if err != nil {
				logger.Warn("recent history disabled", "error", err)
			} else {
				defer store.Close()
				opts.History = store
			}
		}

		navCtx := nav.Context{
			Branches: branches,
			Location: navLocation(navPath, navBranch),
		}
		return nav.Run(nav.New(*comp, navCtx, opts), tea.WithAltScreen())
	},
}

func init() {
	navCmd.Flags().StringVar(&navBranch, "branch", "", "branch to show")
	navCmd.Flags().StringVar(&navPath, "path", "/dashboard", "location path (selects the active tab)")
	navCmd.Flags().StringVar(&navServer, "server", "", "vigia server URL (overrides VIGIA_SERVER_URL; default reads the database)")
	navCmd.Flags().BoolVar(&navNoHistory, "no-history", false, "do not record the visit in recent history")
	rootCmd.AddCommand(navCmd)
}

// source resolves the component and its task service, from the database or a server.
type source struct {
	tasks    ce.TaskService
	branches nav.BranchLister
	load     func(ctx context.Context, key string) (*component.Component, []string, error)
}

func navSource(cfg *config.Config, server string) (*source, error) {
	if server != "" {
		client := ce.NewClient(server, cfg.HTTPTimeout)
		return &source{
			tasks: client,
			load: func(ctx context.Context, key string) (*component.Component, []string, error) {
				c, err := client.ShowComponent(ctx, key)
				return c, nil, err
			},
		}, nil
	}

	if err := connectDB(); err != nil {
		return nil, err
	}
	return &source{
		tasks: db.NewTaskStore(pool),
		branches: nav.BranchListerFunc(func(ctx context.Context, key string) ([]string, error) {
			return db.ListBranches(ctx, pool, key)
		}),
		load: func(ctx context.Context, key string) (*component.Component, []string, error) {
			c, err := db.GetComponent(ctx, pool, key)
			if err != nil {
				return nil, nil, err
			}
			branches, err := db.ListBranches(ctx, pool, key)
			if err != nil {
				slog.Warn("listing branches", "component", key, "error", err)
			}
			return c, branches, nil
		},
	}, nil
}

func navLocation(path, branch string) nav.Location {
	loc := nav.Location{Pathname: path, Query: map[string]string{}}
	if branch != "" {
		loc.Query["branch"] = branch
	}
	return loc
}

