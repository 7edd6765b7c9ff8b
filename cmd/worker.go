package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caracol-labs/salesmachine/internal/bus"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a pipeline stage consumer",
}

// stageWorker binds a bus stage to its pipeline handler.
type stageWorker struct {
	stage   string
	short   string
	handler func(env *pipelineEnv) bus.Handler
}

var stageWorkers = []stageWorker{
	{
		stage: bus.StageDiscovery,
		short: "Consume prospecting requests and discover candidate companies",
		handler: func(env *pipelineEnv) bus.Handler {
			return env.Pipeline.HandleCommand
		},
	},
	{
		stage: bus.StageFingerprint,
		short: "Fingerprint candidate websites and score their stack",
		handler: func(env *pipelineEnv) bus.Handler {
			return env.Pipeline.HandleFingerprint
		},
	},
	{
		stage: bus.StageDecision,
		short: "Assemble decision previews and wait for the operator",
		handler: func(env *pipelineEnv) bus.Handler {
			return env.Pipeline.HandleGate
		},
	},
	{
		stage: bus.StageEnrich,
		short: "Apply operator decisions and resolve contacts",
		handler: func(env *pipelineEnv) bus.Handler {
			return env.Pipeline.HandleDecision
		},
	},
	{
		stage: bus.StageCopies,
		short: "Generate outreach copies for enriched leads",
		handler: func(env *pipelineEnv) bus.Handler {
			return env.Pipeline.HandleCopies
		},
	},
}

func runStage(ctx context.Context, w stageWorker) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initPipeline(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	topic := bus.Topic(cfg.Bus.TopicPrefix, w.stage)
	consumer, err := bus.NewConsumer(
		cfg.Bus.Brokers,
		cfg.Bus.GroupPrefix+"-"+w.stage,
		topic,
		cfg.Bus.MaxInFlight[w.stage],
		w.handler(env),
	)
	if err != nil {
		return err
	}
	defer consumer.Close()

	zap.L().Info("worker started",
		zap.String("stage", w.stage),
		zap.String("topic", topic),
		zap.Int("max_in_flight", cfg.Bus.MaxInFlight[w.stage]),
	)

	err = consumer.Run(ctx)
	if err == context.Canceled {
		err = nil
	}
	zap.L().Info("worker stopped", zap.String("stage", w.stage))
	return err
}

func init() {
	for _, w := range stageWorkers {
		w := w
		workerCmd.AddCommand(&cobra.Command{
			Use:   w.stage,
			Short: w.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runStage(cmd.Context(), w)
			},
		})
	}
	rootCmd.AddCommand(workerCmd)
}
