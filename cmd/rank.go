package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/relevance"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank postings for a profile with the real-time lexical scorer",
	Run: func(cmd *cobra.Command, _ []string) {
		rank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringP("profile", "p", "", "profile id (prompted when empty)")
	rankCmd.Flags().Int("page", 1, "page number, starting at 1")
	rankCmd.Flags().Int("page-size", relevance.DefaultPageSize, "postings per page")
	rankCmd.Flags().String("search", "", "keep only postings whose title or description contains this text")
	rankCmd.Flags().String("province", "", "keep only postings in this province")
	rankCmd.Flags().String("category", "", "keep only postings with this category id")
}

func rank(cmd *cobra.Command) {
	ctx, stop, app := bootstrap("rank")
	defer stop()
	defer app.Close()

	flags := cmd.Flags()
	id, _ := flags.GetString("profile")
	p, err := app.pickProfile(ctx, id)
	if err != nil {
		app.logger.Fatal("getting profile", zap.String("profile_id", id), zap.Error(err))
	}

	if _, err := app.restore(ctx); err != nil {
		app.logger.Fatal("loading artifact", zap.Error(err))
	}

	q := relevance.PageQuery{}
	q.Page, _ = flags.GetInt("page")
	q.PageSize, _ = flags.GetInt("page-size")
	q.Search, _ = flags.GetString("search")
	q.Province, _ = flags.GetString("province")
	q.CategoryID, _ = flags.GetString("category")

	page, err := app.service.RelevancePage(ctx, p, q)
	if err != nil {
		app.logger.Fatal("ranking postings", zap.String("profile_id", p.ID), zap.Error(err))
	}

	app.logger.Info("ranked postings",
		zap.String("profile_id", p.ID),
		zap.Int("total", page.Total),
		zap.Int("page", page.Page),
		zap.Int("pages", page.Pages),
	)
	if err := printJSON(page); err != nil {
		app.logger.Fatal("printing ranking", zap.Error(err))
	}
}
