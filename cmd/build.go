package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the lexical and dense indexes and publish a new artifact version",
	Run: func(_ *cobra.Command, _ []string) {
		build()
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func build() {
	ctx, stop, app := bootstrap("build")
	defer stop()
	defer app.Close()

	snap, err := app.builder.Rebuild(ctx)
	if err != nil {
		app.logger.Fatal("building artifact", zap.Error(err))
	}

	app.logger.Info("artifact published",
		zap.String("version", snap.Version()),
		zap.Int("postings", snap.Len()),
		zap.String("dir", app.store.Root()),
	)
	fmt.Println(snap.Version())
}
