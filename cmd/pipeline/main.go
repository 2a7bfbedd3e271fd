package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/openquant/momentum-pipeline/internal/config"
	"github.com/openquant/momentum-pipeline/internal/featurestore"
	"github.com/openquant/momentum-pipeline/internal/indicator"
	"github.com/openquant/momentum-pipeline/internal/logger"
	"github.com/openquant/momentum-pipeline/internal/pipeline"
	"github.com/openquant/momentum-pipeline/internal/registry"
	"github.com/openquant/momentum-pipeline/internal/scoring"
	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/internal/version"
)

// components holds the wired pipeline dependencies for one command run.
type components struct {
	cfg      config.Config
	log      *logger.Logger
	store    *featurestore.DuckDBStore
	registry *registry.DuckDBRegistry
	writer   *scoring.DuckDBSignalWriter
	scoring  *scoring.Service
}

func (c *components) close() {
	if err := c.store.Close(); err != nil {
		c.log.Error("failed to close feature store", zap.Error(err))
	}

	_ = c.log.Sync()
}

// setup loads the configuration and wires every component on one shared
// DuckDB handle.
func setup(cmd *cli.Command) (*components, error) {
	env := cmd.String("env")
	if env == "" {
		env = os.Getenv("PIPELINE_ENV")
	}

	cfg, err := config.Load(cmd.String("config"), env)
	if err != nil {
		return nil, err
	}

	var lg *logger.Logger
	if cmd.Bool("verbose") {
		lg, err = logger.NewDevelopmentLogger()
	} else {
		lg, err = logger.NewLogger()
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := featurestore.NewDuckDBStore(cfg.Database, lg.Named("featurestore"))
	if err != nil {
		return nil, err
	}

	reg, err := registry.NewDuckDBRegistry(store.DB(), lg.Named("registry"))
	if err != nil {
		store.Close()

		return nil, err
	}

	writer, err := scoring.NewDuckDBSignalWriter(store.DB(), cfg.Tables.SignalsOutput)
	if err != nil {
		store.Close()

		return nil, err
	}

	service, err := scoring.NewService(store, reg, writer, lg.Named("scoring"), cfg.Workers)
	if err != nil {
		store.Close()

		return nil, err
	}

	return &components{
		cfg:      cfg,
		log:      lg,
		store:    store,
		registry: reg,
		writer:   writer,
		scoring:  service,
	}, nil
}

func pipelineParams(c *components, dataPath string) pipeline.SignalPipelineParams {
	if dataPath == "" {
		dataPath = c.cfg.DataPath
	}

	params := indicator.DefaultFeatureParams()
	params.ShortWindow = c.cfg.Strategy.Params.ShortWindow
	params.LongWindow = c.cfg.Strategy.Params.LongWindow

	return pipeline.SignalPipelineParams{
		Store:              c.store,
		Registry:           c.registry,
		Scoring:            c.scoring,
		Logger:             c.log.Named("pipeline"),
		Name:               "signal_pipeline",
		Schedule:           c.cfg.Schedule.Std(),
		DataPath:           dataPath,
		FeatureView:        c.cfg.Tables.FeatureView,
		FeatureViewVersion: c.cfg.FeatureViewVersion,
		FeatureParams:      params,
		ModelName:          c.cfg.Strategy.Name,
		ModelVersion:       c.cfg.Strategy.Version,
		StrategyConfig:     c.cfg.Strategy.Params,
	}
}

// deployAction builds the signal pipeline DAG and deploys it. Production
// deployments stay resident and re-run on the configured schedule until
// interrupted.
func deployAction(ctx context.Context, cmd *cli.Command) error {
	c, err := setup(cmd)
	if err != nil {
		return err
	}
	defer c.close()

	dag, err := pipeline.BuildSignalPipeline(pipelineParams(c, cmd.String("data")))
	if err != nil {
		return err
	}

	onTaskEnd := pipeline.OnTaskEndCallback(func(taskIndex int, taskName string, message string, err error) {
		if err != nil {
			return
		}

		fmt.Printf("[%s] %s\n", taskName, message)
	})
	callbacks := pipeline.LifecycleCallbacks{OnTaskEnd: &onTaskEnd}

	production := c.cfg.IsProduction()

	c.log.Info("deploying pipeline",
		zap.String("environment", c.cfg.Environment),
		zap.String("pipeline_version", version.GetVersion()),
		zap.Bool("scheduled", production),
	)

	if err := pipeline.Deploy(ctx, dag, production, callbacks); err != nil {
		return err
	}

	if production {
		// Stay resident until interrupted, then drain the schedule.
		stop, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		<-stop.Done()
		dag.Suspend()
	}

	return nil
}

// scoreAction runs a single scoring pass against already materialized
// features, without re-running the full pipeline.
func scoreAction(ctx context.Context, cmd *cli.Command) error {
	c, err := setup(cmd)
	if err != nil {
		return err
	}
	defer c.close()

	modelName := cmd.String("model")
	if modelName == "" {
		modelName = c.cfg.Strategy.Name
	}

	modelVersion := resolveModelVersion(cmd.String("model-version"), c.cfg.Strategy.Version)

	versionLabel := modelVersion
	if versionLabel == "" {
		versionLabel = "latest"
	}

	var bar *progressbar.ProgressBar

	summary, err := c.scoring.GenerateSignals(ctx, scoring.RunParams{
		ModelName:          modelName,
		ModelVersion:       modelVersion,
		FeatureView:        c.cfg.Tables.FeatureView,
		FeatureViewVersion: c.cfg.FeatureViewVersion,
		OnProgress: func(scored, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total))
				bar.Describe(fmt.Sprintf("Scoring %s %s", modelName, versionLabel))
			}

			_ = bar.Set(scored)
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %d assets scored in %s (buy=%d sell=%d hold=%d)\n",
		summary.RunID, summary.Rows, summary.Duration.Round(0),
		summary.Counts[types.SignalTypeBuy], summary.Counts[types.SignalTypeSell], summary.Counts[types.SignalTypeHold])

	return nil
}

// resolveModelVersion maps the --model-version flag onto the version passed
// to scoring. An unset flag falls back to the configured version; "latest"
// requests an empty version so the registry resolves the newest one.
func resolveModelVersion(flagValue, configured string) string {
	switch flagValue {
	case "":
		return configured
	case "latest":
		return ""
	default:
		return flagValue
	}
}

func main() {
	// A missing .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:    "pipeline",
		Usage:   "Momentum trading signal pipeline",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the environments config file",
				Value:   "environments.yml",
			},
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment section to use (falls back to PIPELINE_ENV)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "deploy",
				Usage: "Build the signal pipeline DAG and deploy it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "Parquet file with raw price bars (overrides config)",
					},
				},
				Action: deployAction,
			},
			{
				Name:   "score",
				Usage:  "Run one scoring pass against materialized features",
				Action: scoreAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "model",
						Usage: "Model name to score with (defaults to the configured strategy)",
					},
					&cli.StringFlag{
						Name:  "model-version",
						Usage: "Model version to score with; \"latest\" picks the newest registered version (defaults to the configured version)",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
