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

	"github.com/buildbuildio/mosaic"
	"github.com/buildbuildio/mosaic/config"
	"github.com/buildbuildio/mosaic/local"
	"github.com/buildbuildio/mosaic/log"
	"github.com/buildbuildio/mosaic/merger"
	"github.com/buildbuildio/mosaic/planner"
	"github.com/buildbuildio/mosaic/queryer"
	"github.com/buildbuildio/mosaic/remote"
	"github.com/buildbuildio/mosaic/store"
	"github.com/buildbuildio/mosaic/tracing"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "v0.0.0-dev"

const shutdownTimeout = 10 * time.Second

var configPath string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of mosaic",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "mosaic", version)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	RunE: func(cmd *cobra.Command, args []string) error {
		var conf config.Config
		if err := config.Load(configPath, &conf); err != nil {
			return err
		}
		return serve(cmd.Context(), &conf)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the merged schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		var conf config.Config
		if err := config.Load(configPath, &conf); err != nil {
			return err
		}
		logger := log.Configure(conf.Log.Level, conf.Log.Format)

		gw, closer, err := buildGateway(cmd.Context(), &conf, logger)
		if err != nil {
			return err
		}
		defer closer()

		fmt.Fprint(cmd.OutOrStdout(), merger.Print(gw.Schema()))
		return nil
	},
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mosaic",
		Short:         "GraphQL gateway stitching remote services with a local user schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "mosaic.yaml", "path to the yaml config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemaCmd)
	return rootCmd
}

// buildGateway wires the store, the local schema and every remote into a
// gateway. The returned func releases the database pool.
func buildGateway(ctx context.Context, conf *config.Config, logger *logrus.Logger) (*mosaic.Gateway, func(), error) {
	closer := func() {}
	opts := []mosaic.GatewayOption{
		mosaic.WithLogger(logger),
		mosaic.WithIntrospectionTimeout(conf.Timeouts.Introspection),
		mosaic.WithRemoteOptions(
			remote.WithHTTPClient(tracing.HTTPClient(conf.Timeouts.Remote)),
			remote.WithMiddlewares(queryer.ForwardHeaders(conf.ForwardHeaders...)),
		),
	}

	if conf.PlanCacheTTL > 0 {
		opts = append(opts, mosaic.WithPlanner(planner.NewCachedPlanner(conf.PlanCacheTTL)))
	}

	if conf.Database.DSN != "" {
		st, err := store.Open(ctx, conf.Database, store.WithQueryTimeout(conf.Timeouts.Store))
		if err != nil {
			return nil, nil, err
		}
		closer = func() {
			if err := st.Close(); err != nil {
				logger.WithError(err).Warn("closing database")
			}
		}

		schema, err := local.NewSchema(st,
			local.WithExposePasswords(conf.Local.ExposePasswords),
			local.WithLogger(logger),
		)
		if err != nil {
			closer()
			return nil, nil, err
		}
		opts = append(opts, mosaic.WithLocalSchemas(schema))
	}

	gw, err := mosaic.NewGateway(ctx, conf.Endpoints(), opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return gw, closer, nil
}

func serve(ctx context.Context, conf *config.Config) error {
	logger := log.Configure(conf.Log.Level, conf.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, os.Interrupt)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, conf.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.WithError(err).Warn("flushing traces")
		}
	}()

	gw, closer, err := buildGateway(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer closer()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Port),
		Handler:           gw.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("gateway is listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Get().WithError(err).Error("mosaic failed")
		os.Exit(1)
	}
}
