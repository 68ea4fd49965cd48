package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/picvault/picvault/internal/browser"
	"github.com/picvault/picvault/internal/config"
	"github.com/picvault/picvault/internal/facebook"
	"github.com/picvault/picvault/internal/logger"
	"github.com/picvault/picvault/internal/server"
	"github.com/picvault/picvault/internal/storage"
)

func main() {
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "picvault",
	Short: "Facebook profile picture retrieval service",
	Long: `picvault exposes an HTTP service that performs the Facebook OAuth login
flow, retrieves the user's profile picture, stores it in S3-compatible
object storage and returns a time-limited signed link. A scripted-browser
fallback captures the picture when the API will not hand it out.`,
	RunE: runServer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Place version check in PreRun to ensure flags are parsed first
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags()
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := logger.InitLogger(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			func(cfg *config.Config) *config.FacebookConfig { return &cfg.Facebook },
			func(cfg *config.Config) *config.StorageConfig { return &cfg.Storage },
			fx.Annotate(facebook.NewClient, fx.As(new(server.ProfileClient))),
			fx.Annotate(storage.NewS3Store, fx.As(new(server.ObjectStore))),
			newSessionFactory,
		),
		server.Module,
		fx.Invoke(registerServer),
		fx.NopLogger,
	)

	app.Run()
	return nil
}

// newSessionFactory launches one fresh browser session per request.
func newSessionFactory(cfg *config.Config) server.SessionFactory {
	return func() (server.BrowserSession, error) {
		return browser.NewSession(&cfg.Browser)
	}
}

func registerServer(lc fx.Lifecycle, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("Server failed", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
