package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations over HTTP and rebuild indexes in the background",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	serveCmd.Flags().Duration("rebuild-interval", 0, "rebuild indexes this often; 0 disables scheduled rebuilds")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.rebuild-interval", serveCmd.Flags().Lookup("rebuild-interval"))
}

func serve() {
	ctx, stop, app := bootstrap("serve")
	defer stop()
	defer app.Close()

	// A failed first build still serves: requests get empty results until a
	// rebuild succeeds.
	if _, err := app.restore(ctx); err != nil {
		app.logger.Error("no artifact available at startup", zap.Error(err))
	}

	go app.builder.Run(ctx, app.cfg.Server.RebuildInterval)
	go app.cache.Cleanup(ctx, app.cfg.Cache.CleanupInterval)

	srv := server.New(server.Deps{
		Service:  app.service,
		Profiles: app.profiles,
		Builder:  app.builder,
		Metrics:  app.metrics,
		Logger:   app.logger.Named("http"),
	})
	if err := srv.Run(ctx, app.cfg.Server.Addr); err != nil {
		app.logger.Fatal("http server", zap.Error(err))
	}
	app.logger.Info("stopped")
}
