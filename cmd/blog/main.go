package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-blog"
	"github.com/goliatone/go-blog/activitymap"
	"github.com/goliatone/go-blog/config"
	"github.com/goliatone/go-blog/metrics"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config *config.Config
	logger *glog.BaseLogger
	client *persistence.Client
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	app := &App{}

	root := &cobra.Command{
		Use:           "blog",
		Short:         "Blog API server",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.loadConfig(cmd.Context(), configPath)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return app.close()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFilepath, "path to the JSON config file")

	root.AddCommand(
		newServeCommand(app),
		newMigrateCommand(app),
		newSeedCommand(app),
	)

	return root
}

func newServeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.migrate(ctx); err != nil {
				return err
			}
			return app.serve(ctx)
		},
	}
}

func newMigrateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.migrate(cmd.Context())
		},
	}
}

func newSeedCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "seed [all|users|categories|tags]",
		Short:     "Upsert demo users, categories and tags",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"all", "users", "categories", "tags"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) > 0 {
				raw = args[0]
			}

			target, err := blog.ParseSeedTarget(raw)
			if err != nil {
				return err
			}

			if err := app.migrate(cmd.Context()); err != nil {
				return err
			}

			repo := blog.NewRepositoryManager(app.client.DB())
			result, err := blog.NewSeeder(repo, app.GetLogger("seed")).
				Seed(cmd.Context(), target, blog.DefaultSeedData())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seeded users=%d categories=%d tags=%d\n",
				result.Users, result.Categories, result.Tags)
			return nil
		},
	}
}

func (a *App) loadConfig(ctx context.Context, path string) error {
	bootstrap := glog.NewLogger(glog.WithName("blog"), glog.WithLoggerTypeConsole())

	cfg, err := config.Load(ctx, path, bootstrap.GetLogger("config"))
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to load configuration")
	}

	a.config = cfg
	a.logger = glog.NewLogger(
		glog.WithName("blog"),
		glog.WithLevel(cfg.Log.Level),
		glog.WithLoggerType(cfg.Log.Format),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	if cfg.InsecureSigningKey() {
		a.logger.Warn("default signing key in use outside development", "env", cfg.App.Env)
	}

	return nil
}

func (a *App) connect() error {
	if a.client != nil {
		return nil
	}

	client, err := blog.NewPersistence(a.config.Database, a.GetLogger("persistence"))
	if err != nil {
		return err
	}

	a.client = client
	return nil
}

func (a *App) migrate(ctx context.Context) error {
	if err := a.connect(); err != nil {
		return err
	}

	if !a.config.Database.GetMigrationsEnabled() {
		a.logger.Info("migrations disabled")
		return nil
	}

	if err := a.client.ValidateDialects(ctx); err != nil {
		return err
	}

	if err := a.client.Migrate(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to run migrations")
	}

	if report := a.client.Report(); report != nil && !report.IsZero() {
		a.logger.Info("migrations applied", "report", report.String())
	}

	return nil
}

func (a *App) serve(ctx context.Context) error {
	cfg := a.config

	repo := blog.NewRepositoryManager(a.client.DB())
	repo.MustValidate()

	activity := activitymap.LogSink(a.GetLogger("activity"))
	collector := metrics.New(nil)

	auther := blog.NewAuthenticator(repo.Users(),
		blog.NewTokenServiceFromConfig(cfg.Auth, blog.WithTokenLogger(a.GetLogger("token"))),
		blog.WithAutherLogger(a.GetLogger("auth")),
		blog.WithActivitySink(activity),
	)

	limiter := blog.NewIPRateLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst,
		blog.WithOnLimit(func(ip string) {
			a.logger.Warn("login rate limit hit", "ip", ip)
		}),
	)

	srv := blog.NewHTTPServer(blog.ServerConfig{
		Repo:         repo,
		Auther:       auther,
		Media:        blog.NewMediaStore(cfg.Uploads, a.GetLogger("uploads")),
		Limiter:      limiter,
		Metrics:      collector,
		ActivitySink: activity,
		Logger:       a.GetLogger("http"),
		ReadTimeout:  cfg.Server.ReadTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server listening", "address", cfg.Server.Address)
		return srv.Serve(cfg.Server.Address)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}
