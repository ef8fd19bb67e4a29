package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/artifact"
	"github.com/spigell/job-recommender/internal/evaluation"
	"github.com/spigell/job-recommender/internal/features"
	"github.com/spigell/job-recommender/internal/interactions"
	"github.com/spigell/job-recommender/internal/profile"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Compare the bi-encoder baseline with the full pipeline on a persona set",
	Run: func(cmd *cobra.Command, _ []string) {
		evaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("personas", "", "curated personas file; without it ground truth comes from the interaction log")
	evaluateCmd.Flags().Int("k", 0, "cut-off for every metric (default from evaluation.k)")
	evaluateCmd.Flags().Int("sample", -1, "evaluate a seeded sample of this many personas (default from evaluation.sample-size)")
	evaluateCmd.Flags().StringP("out", "o", "", "write the report to this file; .json selects JSON")
	evaluateCmd.Flags().String("format", "text", "report format for stdout: text or json")
}

func evaluate(cmd *cobra.Command) {
	ctx, stop, app := bootstrap("evaluate")
	defer stop()
	defer app.Close()

	flags := cmd.Flags()
	cfg := app.cfg.Evaluation
	if k, _ := flags.GetInt("k"); k > 0 {
		cfg.K = k
	}
	if n, _ := flags.GetInt("sample"); n >= 0 {
		cfg.SampleSize = n
	}

	snap, err := app.restore(ctx)
	if err != nil {
		app.logger.Fatal("loading artifact", zap.Error(err))
	}

	path, _ := flags.GetString("personas")
	personas, log, err := app.loadPersonas(ctx, path)
	if err != nil {
		app.logger.Fatal("loading personas", zap.Error(err))
	}
	if len(personas) == 0 {
		app.logger.Info("exiting", zap.String("reason", "no personas with ground truth"))
		return
	}

	popularity := app.popularity(ctx, snap, personas, log)

	harness := evaluation.New(app.service, cfg, app.logger.Named("evaluation"))
	report, err := harness.Run(ctx, personas, snap, popularity)
	if err != nil {
		app.logger.Fatal("evaluating", zap.Error(err))
	}

	out, _ := flags.GetString("out")
	format, _ := flags.GetString("format")
	if err := writeReport(report, out, format); err != nil {
		app.logger.Fatal("writing report", zap.Error(err))
	}
	if out != "" {
		app.logger.Info("report written", zap.String("filename", out))
	}
}

// loadPersonas reads curated personas from path, or derives them from the
// interaction log. The log is returned when it was read.
func (a *application) loadPersonas(ctx context.Context, path string) ([]evaluation.Persona, []interactions.Interaction, error) {
	var log []interactions.Interaction
	if a.interactions != nil {
		all, err := a.interactions.All(ctx)
		if err != nil {
			return nil, nil, err
		}
		log = all
	}

	if path != "" {
		personas, err := evaluation.LoadPersonas(path)
		return personas, log, err
	}
	if a.interactions == nil {
		return nil, nil, errors.New("either --personas or an interactions source is required")
	}

	profiles, err := a.profiles.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return evaluation.PersonasFromLog(profiles, log, a.cfg.Interactions.IncludeViews), log, nil
}

// popularity prefers observed interactions; without any it falls back to how
// many personas share a skill with each posting.
func (a *application) popularity(ctx context.Context, snap *artifact.Snapshot, personas []evaluation.Persona, log []interactions.Interaction) map[string]float64 {
	if len(log) > 0 {
		return interactions.Popularity(log)
	}

	var all []*profile.UserProfile
	if a.profiles != nil {
		all, _ = a.profiles.List(ctx)
	}
	if len(all) == 0 {
		for _, p := range personas {
			all = append(all, p.Profile)
		}
	}
	pfs := make([]features.ProfileFeatures, 0, len(all))
	for _, p := range all {
		pfs = append(pfs, a.extractor.Profile(p))
	}
	a.logger.Debug("popularity derived from skill overlap", zap.Int("profiles", len(pfs)))
	return evaluation.SkillPopularity(snap.Features, pfs)
}

func writeReport(report *evaluation.Report, out, format string) error {
	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
		if strings.EqualFold(filepath.Ext(out), ".json") {
			format = "json"
		}
	}

	if strings.EqualFold(format, "json") {
		return report.WriteJSON(w)
	}
	return report.WriteText(w)
}
