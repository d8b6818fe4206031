package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/skill-translator/internal/config"
	"github.com/MimeLyc/skill-translator/internal/httpapi"
	"github.com/MimeLyc/skill-translator/internal/service"
	"github.com/MimeLyc/skill-translator/pkg/icron"
	"github.com/MimeLyc/skill-translator/pkg/log"
)

type rootFlags struct {
	configFile string
	logLevel   string
}

func main() {
	flags := &rootFlags{}
	rootCmd := newRootCommand(flags)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(flags *rootFlags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "skill-translator",
		Short:         "Translate Markdown skill manuals while keeping code and front matter intact",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "YAML config file (environment variables take precedence)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newServeCommand(flags),
		newTranslateCommand(flags),
		newCacheCommand(flags),
	)
	return rootCmd
}

// loadConfig reads the configuration and applies the global flags.
func loadConfig(flags *rootFlags, opts ...config.Option) (*config.Config, error) {
	if flags.logLevel != "" {
		opts = append(opts, func(c *config.Config) { c.Log.Level = flags.logLevel })
	}
	cfg, err := config.Load(flags.configFile, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log.InitLogger(log.ParseLevel(cfg.Log.Level))
	return cfg, nil
}

func newServeCommand(flags *rootFlags) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP translation service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []config.Option
			if cmd.Flags().Changed("host") {
				opts = append(opts, func(c *config.Config) { c.HTTP.Host = host })
			}
			if cmd.Flags().Changed("port") {
				opts = append(opts, func(c *config.Config) { c.HTTP.Port = port })
			}
			cfg, err := loadConfig(flags, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	app, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.HTTP.Bearer == "" {
		log.Warn("LOCAL_API_BEARER is not set; the API accepts unauthenticated requests")
	}
	if !cfg.LLM.Configured() {
		log.Warn("LLM_API_KEY is not set; translations of uncached documents will fail")
	}

	srv := httpapi.NewServer(app.orchestrator,
		httpapi.WithBearer(cfg.HTTP.Bearer),
		httpapi.WithVersion(cfg.Translate.Version),
		httpapi.WithProviderConfigured(cfg.LLM.Configured()),
		httpapi.WithMetrics(app.metrics),
		httpapi.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
	)
	cronEngine := cron.New(cron.WithParser(icron.Parser))
	maintenance := service.NewMaintenanceService(app.orchestrator, cronEngine, cfg.Cache.CleanupCron)

	return runWithComponents(ctx, cfg, maintenance, cronEngine, srv)
}

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

// runWithComponents schedules maintenance, serves HTTP and shuts both down
// when ctx is cancelled or the server stops on its own.
func runWithComponents(
	ctx context.Context,
	cfg *config.Config,
	sched scheduler,
	cronEngine cronEngine,
	httpSrv httpServer,
) error {
	if err := sched.Schedule(ctx); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}
	cronEngine.Start()
	defer func() {
		<-cronEngine.Stop().Done()
	}()

	addr := cfg.HTTP.Addr()
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", addr)
		errCh <- httpSrv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
