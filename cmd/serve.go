package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"assetstore/internal/assets"
	"assetstore/internal/cleanup"
	"assetstore/internal/clientid"
	"assetstore/internal/objectstore"
	"assetstore/internal/server"
	"assetstore/internal/trigger"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a)
		},
	})
}

func serve(ctx context.Context, a *app) error {
	clients := clientid.NewValidator(a.cfg.ClientValidation)
	if !clients.Enabled() {
		log.Warn("client_validation.url not set, accepting every client id")
	}

	var publisher *trigger.Publisher
	if a.cfg.Cleanup.TriggerOnDelete {
		publisher = trigger.NewPublisher(a.cfg.KafkaBroker, a.cfg.KafkaTopic)
		defer publisher.Close()
	}

	var filesRoot string
	if local, ok := a.objects.(*objectstore.Local); ok {
		filesRoot = local.Root()
	}

	srv := server.NewServer(a.cfg, server.Deps{
		Assets:    assets.NewService(a.db, a.objects, cleanup.NewGateway(a.db), clients, a.cfg.Upload),
		Worker:    a.newWorker(),
		Reporter:  cleanup.NewReporter(a.db),
		Clients:   clients,
		Publisher: publisher,
		Health:    a.db.Ping,
		FilesRoot: filesRoot,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
