package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"net/http"
	"os"
	"os/signal"
	"rtb-engine/internal/config"
	"rtb-engine/internal/config/components"
	"rtb-engine/internal/database/influx"
	"rtb-engine/internal/database/postgres"
	"rtb-engine/internal/database/postgres/listeners"
	"rtb-engine/internal/database/postgres/repositories"
	"rtb-engine/internal/feed"
	"rtb-engine/internal/logger"
	"rtb-engine/internal/metrics"
	"rtb-engine/internal/mq"
	"rtb-engine/internal/mq/handlers"
	"rtb-engine/internal/pib"
	"rtb-engine/internal/ranging"
	"rtb-engine/internal/services"
	"syscall"
	"time"
)

const confirmQueueSize = 1024

type Application struct {
	config *config.Config

	postgresDB       *postgres.PostgresDB
	listenerManager  *listeners.ListenerManager
	influxDB         *influx.InfluxDB
	resultRepository *repositories.ResultRepository

	store      ranging.ResultStore
	collector  *metrics.Collector
	pib        *pib.PIB
	dispatcher *ranging.Dispatcher

	rangingService *services.RangingService
	feedHub        *feed.Hub
	httpServer     *http.Server

	mqttClient   *mq.Client
	topicManager *mq.TopicManager
	publisher    *mq.PublisherImpl
	radio        *mq.Radio
	router       *mq.RouterImpl

	group        *errgroup.Group
	groupCtx     context.Context
	shutdownChan chan os.Signal
	ctx          context.Context
	cancelFunc   context.CancelFunc
}

func main() {
	app := &Application{}

	if err := app.initialize(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	if err := app.run(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run application")
	}
}

func (app *Application) initialize() error {
	var err error

	app.config, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.NewLogger(app.config.Logger)
	log.Info().
		Str("component", "main").
		Str("service", app.config.Service.Name).
		Str("version", app.config.Service.Version).
		Msg("Setting up service...")

	app.ctx, app.cancelFunc = context.WithCancel(context.Background())
	app.shutdownChan = make(chan os.Signal, 1)
	signal.Notify(app.shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.initializeMetrics(); err != nil {
		return fmt.Errorf("error while initializing metrics: %w", err)
	}

	if err := app.initializeMQTT(); err != nil {
		return fmt.Errorf("error while initializing MQTT: %w", err)
	}

	if err := app.initializeDatabases(); err != nil {
		return fmt.Errorf("error while initializing databases: %w", err)
	}

	if err := app.initializeServices(); err != nil {
		return fmt.Errorf("error while initializing services: %w", err)
	}

	if err := app.initializeDispatcher(); err != nil {
		return fmt.Errorf("error while initializing dispatcher: %w", err)
	}

	if err := app.setupTopicHandlers(); err != nil {
		return fmt.Errorf("error while setting up topic handlers: %w", err)
	}

	if err := app.setupTableListeners(); err != nil {
		return fmt.Errorf("error while setting up table listeners: %w", err)
	}

	app.startBackground()

	log.Info().Msg("Successfully initialized application")
	return nil
}

func (app *Application) initializeMetrics() error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	collector, err := metrics.NewCollector(registry)
	if err != nil {
		return err
	}
	app.collector = collector

	return nil
}

func (app *Application) initializeMQTT() error {
	app.topicManager = mq.NewTopicManager(app.config.MQTT.BaseTopic, logger.GetLogger("topic-manager"))
	app.mqttClient = mq.NewClient(app.config.MQTT, logger.GetLogger("mq-client"))

	connectCtx, cancel := context.WithTimeout(app.ctx, 2*time.Minute)
	defer cancel()

	if err := app.mqttClient.Connect(connectCtx); err != nil {
		return fmt.Errorf("could not connect to MQTT broker: %w", err)
	}

	app.publisher = mq.NewPublisher(app.mqttClient, app.topicManager, logger.GetLogger("publisher"))
	app.radio = mq.NewRadio(app.mqttClient, app.topicManager, logger.GetLogger("radio"))
	app.router = mq.NewRouter(logger.GetLogger("router"))

	log.Info().
		Str("component", "main").
		Str("broker", app.config.MQTT.GetUrl()).
		Msg("Successfully initialized MQTT client")

	return nil
}

func (app *Application) initializeDatabases() error {
	var err error

	switch app.config.Ranging.StoreBackend {
	case components.StorePostgres:
		app.postgresDB, err = postgres.NewConnection(app.config.Postgres)
		if err != nil {
			return fmt.Errorf("could not connect to PostgreSQL: %w", err)
		}
		app.resultRepository = repositories.NewResultRepository(app.postgresDB.GetDB())
		app.store = app.resultRepository

		log.Info().
			Str("component", "main").
			Str("host", app.config.Postgres.Host).
			Msg("Using PostgreSQL result store")
	default:
		app.store = ranging.NewMemoryStore()
		log.Info().
			Str("component", "main").
			Msg("Using in-memory result store")
	}

	if app.config.InfluxDB.Enabled {
		app.influxDB, err = influx.NewConnection(app.config.InfluxDB, logger.GetLogger("influxdb"))
		if err != nil {
			return fmt.Errorf("could not connect to InfluxDB: %w", err)
		}
	}

	return nil
}

func (app *Application) initializeServices() error {
	var history services.HistoryWriter
	if app.influxDB != nil {
		history = influx.NewResultWriter(
			app.influxDB.GetWriteAPI(),
			app.config.InfluxDB.Measurement,
			logger.GetLogger("result-writer"),
		)
	}

	app.feedHub = feed.NewHub(logger.GetLogger("feed"))

	app.rangingService = services.NewRangingService(
		app.publisher,
		history,
		app.feedHub,
		confirmQueueSize,
		logger.GetLogger("ranging-service"),
	)

	if app.resultRepository != nil {
		if err := app.republishStoredResults(); err != nil {
			log.Warn().Err(err).Msg("Could not republish stored results")
		}
	}

	log.Info().
		Str("component", "main").
		Msg("Successfully initialized services")
	return nil
}

func (app *Application) republishStoredResults() error {
	ctx, cancel := context.WithTimeout(app.ctx, 30*time.Second)
	defer cancel()

	records, err := app.resultRepository.GetAll(ctx)
	if err != nil {
		return err
	}

	results := make([]services.StoredResult, 0, len(records))
	for _, record := range records {
		peer, result, err := record.ToModel()
		if err != nil {
			log.Warn().Err(err).Str("peer", record.Peer).Msg("Skipping unreadable stored result")
			continue
		}
		results = append(results, services.StoredResult{Peer: peer, Origin: record.Origin, Result: result})
	}

	return app.rangingService.Republish(results)
}

func (app *Application) initializeDispatcher() error {
	opts, err := app.config.Ranging.Options()
	if err != nil {
		return err
	}

	app.pib = pib.New()
	app.dispatcher = ranging.NewDispatcher(
		opts,
		app.pib,
		app.radio,
		app.store,
		app.rangingService.HandleConfirm,
		ranging.WithRecorder(app.collector),
		ranging.WithLogger(logger.GetLogger("dispatcher")),
	)

	log.Info().
		Str("component", "main").
		Str("local_address", opts.LocalAddress.String()).
		Str("strategy", app.config.Ranging.Strategy).
		Msg("Successfully initialized dispatcher")
	return nil
}

type topicHandler interface {
	mq.TopicHandler
	Topics() []string
}

func (app *Application) setupTopicHandlers() error {
	topicHandlers := []topicHandler{
		handlers.NewFrameHandler(app.topicManager, app.dispatcher, logger.GetLogger("frame-handler")),
		handlers.NewPmuHandler(app.topicManager, app.dispatcher, logger.GetLogger("pmu-handler")),
		handlers.NewRequestHandler(app.topicManager, app.dispatcher, app.rangingService.HandleConfirm, logger.GetLogger("request-handler")),
	}

	for _, handler := range topicHandlers {
		app.router.RegisterMultipleTopics(handler.Topics(), handler)
	}

	for _, topic := range app.router.Patterns() {
		if err := app.mqttClient.Subscribe(topic, app.config.MQTT.QoS, app.router.HandleMessage); err != nil {
			return fmt.Errorf("error subscribing to %s: %w", topic, err)
		}
	}

	return nil
}

func (app *Application) setupTableListeners() error {
	if app.postgresDB == nil || !app.config.Postgres.Notify {
		return nil
	}

	app.listenerManager = listeners.NewListenerManager(
		app.postgresDB.GetDB(),
		app.config.Postgres.GetDsn(),
		logger.GetLogger("listener-manager"),
	)

	resultListener := listeners.NewResultTableListener(
		logger.GetLogger("result-listener"),
		app.mqttClient,
		app.topicManager,
		app.publisher,
	)
	if err := app.listenerManager.RegisterListener(resultListener); err != nil {
		return fmt.Errorf("failed to register result listener: %w", err)
	}

	if err := app.listenerManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize listener manager: %w", err)
	}

	app.listenerManager.Start()

	log.Info().Msg("All table listeners initialized and started")
	return nil
}

func (app *Application) startBackground() {
	app.group, app.groupCtx = errgroup.WithContext(app.ctx)

	app.group.Go(func() error {
		return app.rangingService.Run(app.groupCtx)
	})

	if app.config.Service.HTTPAddress == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.collector.Handler())
	mux.Handle(app.config.Service.FeedPath, app.feedHub)
	mux.HandleFunc("/v1/sessions", app.serveSessions)

	app.httpServer = &http.Server{
		Addr:              app.config.Service.HTTPAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	app.group.Go(func() error {
		log.Info().
			Str("component", "main").
			Str("address", app.httpServer.Addr).
			Msg("HTTP server listening")

		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
}

func (app *Application) serveSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(app.dispatcher.Sessions()); err != nil {
		log.Warn().Err(err).Msg("Could not encode sessions")
	}
}

func (app *Application) run() error {
	select {
	case sig := <-app.shutdownChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-app.groupCtx.Done():
		log.Warn().Msg("background task stopped, shutting down application")
	}

	return app.shutdown()
}

func (app *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Service.ShutdownTimeout)
	defer cancel()

	// active sessions still confirm while the pipeline is up
	if app.dispatcher != nil {
		app.dispatcher.Close()
	}
	if app.radio != nil {
		app.radio.Wait()
	}

	if app.httpServer != nil {
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down HTTP server")
		}
	}

	app.cancelFunc()

	var runErr error
	if app.group != nil {
		runErr = app.group.Wait()
	}

	if app.feedHub != nil {
		app.feedHub.Close()
	}

	if app.listenerManager != nil {
		app.listenerManager.Stop()
	}

	if app.mqttClient != nil {
		app.mqttClient.Disconnect(shutdownCtx)
	}

	if app.influxDB != nil {
		app.influxDB.Close()
	}

	if app.postgresDB != nil {
		if err := app.postgresDB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing PostgreSQL connection")
		}
	}

	processed, failed := app.rangingService.Stats()
	log.Info().
		Uint64("confirms_delivered", processed).
		Uint64("confirms_failed", failed).
		Msg("Shutdown complete")

	return runErr
}
