package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/logger"
	"github.com/spigell/job-recommender/internal/profile"
)

var errNoProfiles = errors.New("no profiles to choose from")

// bootstrap builds the logger, config and application every command starts
// from. Failures here are fatal.
func bootstrap(name string) (context.Context, context.CancelFunc, *application) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the job-recommender", zap.String("command", name), zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	app, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("wiring components", zap.Error(err))
	}
	return ctx, stop, app
}

func selectProfile(all []*profile.UserProfile) (*profile.UserProfile, error) {
	if len(all) == 0 {
		return nil, errNoProfiles
	}

	items := make([]string, len(all))
	for i, p := range all {
		items[i] = fmt.Sprintf("%s %s", p.ID, p.Title)
	}

	profilePrompt := promptui.Select{
		Label: "Choose a profile and press ENTER",
		Items: items,
		Size:  10,
	}
	idx, _, err := profilePrompt.Run()
	if err != nil {
		return nil, err
	}
	return all[idx], nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
