package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/artifact"
	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/recommend"
)

const (
	PromptExplain          = "Explain results"
	PromptReportByCategory = "Report by category"
	PromptPostingsToFile   = "Dump recommended postings to file"
	PromptExit             = "Exit"
)

var errExit = errors.New("exit requested")

var actionPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptExplain, PromptReportByCategory, PromptPostingsToFile, PromptExit},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend postings for a profile with the full pipeline",
	Run: func(cmd *cobra.Command, _ []string) {
		recommendForProfile(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("profile", "p", "", "profile id (prompted when empty)")
	recommendCmd.Flags().IntP("top-k", "k", 0, "number of recommendations (default from pipeline.top-k)")
	recommendCmd.Flags().StringP("out", "o", "", "write the response as JSON to this file")
	recommendCmd.Flags().Bool("dump", false, "dump the recommended postings to a temporary file")
	recommendCmd.Flags().BoolP("interactive", "i", false, "ask what to do with the results")
	recommendCmd.Flags().Bool("hide-seen", false, "drop postings the profile already viewed or clicked")
}

func recommendForProfile(cmd *cobra.Command) {
	ctx, stop, app := bootstrap("recommend")
	defer stop()
	defer app.Close()

	flags := cmd.Flags()
	id, _ := flags.GetString("profile")
	p, err := app.pickProfile(ctx, id)
	if err != nil {
		app.logger.Fatal("getting profile", zap.String("profile_id", id), zap.Error(err))
	}

	snap, err := app.restore(ctx)
	if err != nil {
		app.logger.Fatal("loading artifact", zap.Error(err))
	}

	topK, _ := flags.GetInt("top-k")
	if topK <= 0 {
		topK = app.cfg.Pipeline.TopK
	}
	hide, _ := flags.GetBool("hide-seen")
	var seen []string
	if hide {
		if seen, err = app.seenJobs(ctx, p.ID); err != nil {
			app.logger.Fatal("reading interactions", zap.Error(err))
		}
	}

	// Seen postings are removed after ranking, so ask for enough to refill.
	resp, err := app.service.Recommend(ctx, snap, p, recommend.Options{TopK: topK + len(seen)})
	if err != nil {
		app.logger.Fatal("recommending", zap.String("profile_id", p.ID), zap.Error(err))
	}

	postings := recommendedPostings(snap, resp)
	if excluded := hideSeen(&resp, postings, seen, topK); len(excluded) > 0 {
		app.logger.Info("hid already seen postings", zap.Strings("job_ids", excluded))
	}

	app.logger.Info("recommendations ready",
		zap.String("profile_id", p.ID),
		zap.String("mode", string(resp.Mode)),
		zap.Int("count", len(resp.Results)),
		zap.Strings("relaxed", resp.Relaxed),
	)

	if out, _ := flags.GetString("out"); out != "" {
		if err := writeJSONFile(out, resp); err != nil {
			app.logger.Fatal("writing response", zap.String("filename", out), zap.Error(err))
		}
		app.logger.Info("response written", zap.String("filename", out))
	} else if err := printJSON(resp); err != nil {
		app.logger.Fatal("printing response", zap.Error(err))
	}

	if dump, _ := flags.GetBool("dump"); dump {
		if err := handleAction(PromptPostingsToFile, app.logger, resp, postings); err != nil {
			app.logger.Fatal("dumping postings", zap.Error(err))
		}
	}

	if interactive, _ := flags.GetBool("interactive"); !interactive || len(resp.Results) == 0 {
		return
	}
	for {
		_, action, err := actionPrompt.Run()
		if err != nil {
			app.logger.Fatal("exiting", zap.Error(err))
		}
		if err := handleAction(action, app.logger, resp, postings); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			app.logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, resp recommend.Response, postings *corpus.Corpus) error {
	switch action {
	case PromptExplain:
		for i, r := range resp.Results {
			logger.Info(explain(r, postings.FindByID(r.JobID)), zap.Int("rank", i+1), zap.Float64("score", r.Score))
		}
		return nil
	case PromptReportByCategory:
		pretty, _ := json.MarshalIndent(postings.ReportByCategory(), "", "  ")
		logger.Info(string(pretty), zap.Int("postings count", postings.Len()))
		return nil
	case PromptPostingsToFile:
		filename, err := postings.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump postings to file: %w", err)
		}
		logger.Info("dumping postings to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// seenJobs lists the postings userID already viewed or clicked.
func (a *application) seenJobs(ctx context.Context, userID string) ([]string, error) {
	if a.interactions == nil {
		a.logger.Warn("ignoring --hide-seen", zap.String("reason", "no interactions source configured"))
		return nil, nil
	}
	seen, err := a.interactions.ByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(seen))
	for i, in := range seen {
		ids[i] = in.JobID
	}
	return ids, nil
}

// hideSeen removes the seen postings from both resp and postings, then cuts
// both to topK. It returns the IDs it removed.
func hideSeen(resp *recommend.Response, postings *corpus.Corpus, seen []string, topK int) []string {
	excluded := postings.Exclude(corpus.JobIDField, seen)
	resp.Results = slices.DeleteFunc(resp.Results, func(r recommend.Result) bool {
		return slices.Contains(excluded, r.JobID)
	})
	if len(resp.Results) > topK {
		resp.Results = resp.Results[:topK]
	}
	if len(postings.Items) > topK {
		postings.Items = postings.Items[:topK]
	}
	return excluded
}

// recommendedPostings returns the postings of resp in rank order.
func recommendedPostings(snap *artifact.Snapshot, resp recommend.Response) *corpus.Corpus {
	items := make([]*corpus.JobPosting, 0, len(resp.Results))
	for _, r := range resp.Results {
		if j := snap.Corpus.FindByID(r.JobID); j != nil {
			items = append(items, j)
		}
	}
	return corpus.New(items)
}

func explain(r recommend.Result, job *corpus.JobPosting) string {
	title := r.JobID
	if job != nil {
		title = fmt.Sprintf("%s %s / %s / %s", job.ID, job.Title, job.Company, job.Province)
	}
	reason := r.Reason
	line := fmt.Sprintf("%s: similarity %.3f", title, reason.Similarity)
	if reason.CrossScore != nil {
		line += fmt.Sprintf(", cross-encoder %.3f", *reason.CrossScore)
	}
	if reason.LexicalScore != nil {
		line += fmt.Sprintf(", lexical %.3f", *reason.LexicalScore)
	}
	if len(reason.MatchedSkills) > 0 {
		line += fmt.Sprintf(", matched skills %v (+%.2f)", reason.MatchedSkills, reason.SkillBoost)
	}
	if reason.RecentlyPosted {
		line += ", recently posted"
	}
	if reason.Degraded {
		line += ", degraded"
	}
	return line
}
