package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/interactions"
)

var trackCmd = &cobra.Command{
	Use:   "track USER_ID JOB_ID [view|click]",
	Short: "Append a view or click to the interaction log",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(_ *cobra.Command, args []string) {
		track(args)
	},
}

func init() {
	rootCmd.AddCommand(trackCmd)
}

func track(args []string) {
	ctx, stop, app := bootstrap("track")
	defer stop()
	defer app.Close()

	// File logs are read-only dumps.
	if app.cfg.Interactions.Source != sourceSQLite {
		app.logger.Fatal("interactions source is not writable", zap.String("hint", "set interactions.source to sqlite"))
	}

	event := interactions.EventClick
	if len(args) == 3 {
		e, err := interactions.ParseEvent(args[2])
		if err != nil {
			app.logger.Fatal("parsing event", zap.Error(err))
		}
		event = e
	}

	in := interactions.Interaction{UserID: args[0], JobID: args[1], Event: event, At: time.Now().UTC()}
	if err := app.interactions.Append(ctx, in); err != nil {
		app.logger.Fatal("recording interaction", zap.Error(err))
	}
	app.logger.Info("interaction recorded",
		zap.String("user_id", in.UserID),
		zap.String("job_id", in.JobID),
		zap.String("event", string(in.Event)),
	)
}
