package main

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"model-promoter/internal/config"
	"model-promoter/internal/core/domain"
	"model-promoter/internal/core/services"
)

var version = "dev"

// serviceBuilder wires an EvaluationService for cfg. The returned func
// releases any connections it opened.
type serviceBuilder func(ctx context.Context, cfg *config.Config) (*services.EvaluationService, func(), error)

func newRootCmd(build serviceBuilder) *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	var (
		cfgFile   string
		buildID   string
		modelName string
	)

	cmd := &cobra.Command{
		Use:           "evaluate",
		Short:         "promote the latest completed training run into the model registry",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile == "" {
				return nil
			}
			return mergeConfigFile(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			echoArguments(out, buildID, modelName)

			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			initLogger(cfg)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			svc, cleanup, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			return runEvaluate(ctx, out, svc, services.EvaluateRequest{
				RunContext: domain.RunContext{
					RunID:          cfg.Run.RunID,
					ExperimentName: cfg.Run.ExperimentName,
					Workspace:      cfg.Run.Workspace,
				},
				BuildID:   buildID,
				ModelName: modelName,
			})
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml)")
	cmd.PersistentFlags().String("log-level", "", "set the logging level (debug, info, warn, error)")
	cmd.PersistentFlags().String("run_id", "", "ID of the run this evaluation executes under")
	cmd.PersistentFlags().String("experiment", "", "experiment name, when the tracker does not record it on the run")
	cmd.PersistentFlags().String("workspace", "", "workspace holding the model registry")
	cmd.PersistentFlags().String("policy", "", "promotion policy: always or compare")

	cmd.Flags().StringVar(&buildID, "build_id", "", "The ID of the build triggering this pipeline run")
	cmd.Flags().StringVar(&modelName, "model_name", domain.DefaultModelName, "Name of the Model")

	// Bind flags to viper; flag > config file > env > default.
	_ = v.BindPFlag("LOGGER_LEVEL", cmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("RUN_ID", cmd.PersistentFlags().Lookup("run_id"))
	_ = v.BindPFlag("EXPERIMENT_NAME", cmd.PersistentFlags().Lookup("experiment"))
	_ = v.BindPFlag("WORKSPACE", cmd.PersistentFlags().Lookup("workspace"))
	_ = v.BindPFlag("PROMOTION_POLICY", cmd.PersistentFlags().Lookup("policy"))

	cmd.AddCommand(newServeCmd(v, build))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// mergeConfigFile layers a YAML file under flags and env:
// flag > env > config file > default.
func mergeConfigFile(v *viper.Viper, path string) error {
	bs, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var configMap map[string]interface{}
	if err := yaml.Unmarshal(bs, &configMap); err != nil {
		return fmt.Errorf("unmarshal config file %s: %w", path, err)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("merge config file: %w", err)
	}
	return nil
}

// echoArguments prints the parsed flags. It runs before config and wiring.
func echoArguments(out io.Writer, buildID, modelName string) {
	fmt.Fprintf(out, "Argument 1: %s\n", buildID)
	fmt.Fprintf(out, "Argument 2: %s\n", modelName)
}

func runEvaluate(ctx context.Context, out io.Writer, svc *services.EvaluationService, req services.EvaluateRequest) error {
	result, err := svc.Evaluate(ctx, req)
	if err != nil {
		return err
	}

	if result.ProductionModel == nil {
		fmt.Fprintln(out, "This is the first model to be trained, thus nothing to evaluate for now")
	}
	if result.Registered != nil {
		fmt.Fprintln(out, "Registered new model!")
	}
	return nil
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
