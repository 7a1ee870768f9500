package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	echoapi "github.com/elimisha/maabara/api/echo"
	"github.com/elimisha/maabara/core"
	"github.com/elimisha/maabara/core/simulation"
	aigensvc "github.com/elimisha/maabara/services/aigen"
	logsvc "github.com/elimisha/maabara/services/logger"
	"github.com/elimisha/maabara/storage/database"
	dummydb "github.com/elimisha/maabara/storage/database/dummy"
	"github.com/elimisha/maabara/storage/database/sqlxrepos"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	var logger core.Logger
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	if conf.Debug {
		logger = logsvc.NewConsoleLogger(std)
	} else {
		rollbar := logsvc.NewRollbarLogger(std, conf)
		rollbar.Enable(true)
		logger = rollbar
	}

	// set up repositories; an in-memory store backs local runs without Postgres
	var repo simulation.Repository
	if conf.Database.Host == "" {
		db, err := dummydb.Open()
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		repo = dummydb.NewSimulationRepository(db)
	} else {
		if err := database.CreateIfNotExist(conf); err != nil {
			logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
		}
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				logger.Error("failed to close DB", err)
			}
		}()
		if err = database.Migrate(db.DB); err != nil {
			logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
		}
		repo = sqlxrepos.NewSimulationRepository(db)
	}

	// set up services
	simSvc := simulation.NewService(repo, logger)
	gameSvc := setUpGameService(conf, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:    conf,
			Logger:  logger,
			SimSvc:  simSvc,
			GameSvc: gameSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpGameService picks the first configured AI provider and wraps it so
// generation failures degrade to canned content instead of surfacing.
func setUpGameService(conf *core.Config, logger core.Logger) core.GameContentService {
	var primary core.GameContentService
	switch {
	case conf.GeminiAPIKey != "":
		svc, err := aigensvc.NewGeminiService(context.Background(), conf, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("setting up Gemini: %v", err), err)
			break
		}
		primary = svc
	case conf.OpenAIAPIKey != "":
		svc, err := aigensvc.NewOpenAIService(conf, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("setting up OpenAI: %v", err), err)
			break
		}
		primary = svc
	}
	if primary == nil {
		primary = aigensvc.NewDummyService()
	}
	return aigensvc.NewFallbackService(primary, logger)
}
