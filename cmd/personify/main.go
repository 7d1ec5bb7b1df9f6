package main

import (
	"net/http"
	"time"

	"personify/pkg/arguments"
	"personify/pkg/controller"
	"personify/pkg/errors"
	"personify/pkg/logging"
)

func main() {
	logging.Setup()

	args := arguments.New()
	if err := args.Validate(); err != nil {
		logging.Logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	if err := errors.InitSentry(args.SentryDSN); err != nil {
		logging.Logger.Fatal().Err(err).Msg("Failed to init Sentry")
	}
	defer errors.FlushSentry()

	ctrl, err := controller.New(args)
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("Failed to build controller")
	}

	server := &http.Server{
		Addr:         args.BindAddr,
		Handler:      ctrl.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	logging.Logger.Info().Str("addr", args.BindAddr).Msg("Starting server")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Logger.Fatal().Err(err).Msg("Server stopped")
	}
}
