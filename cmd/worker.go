package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"assetstore/internal/models"
	"assetstore/internal/trigger"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "worker",
		Short: "Run cleanup batches on a cron schedule and on Kafka triggers",
		Long: `Invokes the cleanup worker whenever cleanup.schedule fires and whenever a
trigger message arrives on kafka_topic. Each invocation processes one bounded
batch. Overlapping invocations from other processes are safe.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return runWorker(ctx, a)
		},
	})
}

func runWorker(ctx context.Context, a *app) error {
	if a.cfg.Cleanup.Schedule == "" && a.cfg.KafkaBroker == "" {
		return fmt.Errorf("worker needs cleanup.schedule or kafka_broker to be set")
	}

	w := a.newWorker()
	run := func(ctx context.Context, opts models.CleanupOptions, source string) {
		summary, err := w.Run(ctx, opts)
		if err != nil {
			log.Errorf("cleanup run (%s) failed: %v", source, err)
			return
		}
		log.WithField("source", source).Debugf("cleanup run: %+v", summary)
	}

	if a.cfg.Cleanup.Schedule != "" {
		c, err := newScheduler(a.cfg.Cleanup.Schedule, func() {
			run(ctx, a.cleanupOptions(), "cron")
		})
		if err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		log.Infof("cleanup scheduled with %q", a.cfg.Cleanup.Schedule)
	}

	if a.cfg.KafkaBroker == "" {
		<-ctx.Done()
		return nil
	}

	log.Infof("listening for cleanup triggers on %s/%s", a.cfg.KafkaBroker, a.cfg.KafkaTopic)
	return trigger.Consume(ctx, a.cfg.KafkaBroker, a.cfg.KafkaTopic, func(ctx context.Context, m trigger.Message) error {
		opts := m.Options()
		if opts.BatchSize == 0 {
			opts.BatchSize = a.cfg.Cleanup.BatchSize
		}
		if opts.MaxAttempts == 0 {
			opts.MaxAttempts = a.cfg.Cleanup.MaxAttempts
		}
		run(ctx, opts, "kafka")
		return nil
	})
}

// newScheduler registers job on a standard five-field cron spec. A run still
// in progress in this process makes the next tick a no-op.
func newScheduler(spec string, job func()) (*cron.Cron, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup.schedule %q: %w", spec, err)
	}

	c := cron.New()
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(cron.FuncJob(job))
	c.Schedule(schedule, wrapped)
	return c, nil
}
