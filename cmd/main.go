package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"temperaturebox/internal/config"
	"temperaturebox/internal/csvlog"
	"temperaturebox/internal/device"
	"temperaturebox/internal/handlers"
	"temperaturebox/internal/logger"
	"temperaturebox/internal/metrics"
	"temperaturebox/internal/repository"
	"temperaturebox/internal/repository/db"
	"temperaturebox/internal/server"
	"temperaturebox/internal/service"
	"temperaturebox/internal/telemetry"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const (
	defaultConfigPath = "settings.json"
	shutdownTimeout   = 10 * time.Second
	subscriberBuffer  = 256
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "tempbox",
		Short:        "Runs temperature programs on Modbus temperature boxes",
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to the settings document")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP interface (default)",
		RunE:  runServe,
	})
	rootCmd.AddCommand(newPortsCmd())
	rootCmd.AddCommand(newCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(configPath)
	if err != nil {
		return err
	}
	log := logger.Get(settings.LogLevel)

	if err := checkPlatform(settings, log); err != nil {
		return err
	}

	sqlDB, err := openDB(settings, log)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("sqlite_close_failed", "err", cerr)
		}
	}()

	link, err := device.New(settings.Device.Driver, serialSettings(settings))
	if err != nil {
		return err
	}

	observer, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// wire dependencies
	broker := service.NewBroker(log)
	engine := service.NewScheduler(settings.ToBoxes(), link, csvlog.NewWriter(), broker,
		service.SchedulerConfig{
			SampleInterval: settings.SampleInterval(),
			DataDirectory:  settings.DataDirectory,
		},
		service.WithObserver(observer),
		service.WithLogger(log),
	)
	repos := repository.NewRepository(sqlDB)
	services := service.NewService(repos, engine, link, service.AuthConfig{
		SigningKey: signingKey(settings, log),
		TokenTTL:   settings.TokenTTL(),
	})

	// history and telemetry drain until the broker stops
	var consumers sync.WaitGroup
	startRecorder(&consumers, broker, repos, log)
	mqtt := startTelemetry(&consumers, broker, settings, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engine.Run(ctx, settings.TickInterval())
	}()

	apiHandler := handlers.NewHandler(services, log, handlers.WithAuth(settings.Auth.Enabled))
	srv := server.New(settings.HTTP.Port, apiHandler.InitRoutes())
	runHTTPServer(srv, log)

	waitForShutdown(cancel, srv, log)

	<-engineDone
	broker.Stop()
	consumers.Wait()
	if mqtt != nil {
		mqtt.Disconnect()
	}

	settings.UpdateBoxes(engine.Boxes())
	if err := config.Save(configPath, settings); err != nil {
		log.Errorw("settings_save_failed", "path", configPath, "err", err)
		return err
	}
	log.Infow("settings_saved", "path", configPath)
	return nil
}

// openDB initializes the SQLite history database using configuration.
func openDB(settings *config.Settings, log *logger.Logger) (*sql.DB, error) {
	log.Infow("opening history db", "path", settings.DB.Path)
	return db.InitDB(settings.DB.Path)
}

// checkPlatform enumerates the serial ports once. An unsupported host is fatal
// unless the simulated driver is selected.
func checkPlatform(settings *config.Settings, log *logger.Logger) error {
	if settings.Device.Driver == device.DriverSimulated {
		return nil
	}
	ports, err := device.ListPorts()
	if err != nil {
		var ce *device.ConfigError
		if errors.As(err, &ce) {
			return err
		}
		log.Warnw("serial_enumeration_failed", "err", err)
		return nil
	}
	log.Infow("serial ports available", "ports", ports)
	return nil
}

func serialSettings(settings *config.Settings) device.SerialSettings {
	return device.SerialSettings{
		BaudRate: settings.Device.BaudRate,
		DataBits: settings.Device.DataBits,
		Parity:   settings.Device.Parity,
		StopBits: settings.Device.StopBits,
		Timeout:  settings.DeviceTimeout(),
	}
}

// loadSettings reads the settings document. A missing document gets a hint
// instead of the bare file error.
func loadSettings(path string) (*config.Settings, error) {
	settings, err := config.Load(path)
	if config.IsNotExist(err) {
		return nil, fmt.Errorf("settings file %s not found: copy settings.example.json there or pass --config: %w", path, err)
	}
	return settings, err
}

// signingKey returns the configured token key, or a per-process random one.
// Tokens issued with a random key do not survive a restart.
func signingKey(settings *config.Settings, log *logger.Logger) string {
	if settings.Auth.SigningKey != "" {
		return settings.Auth.SigningKey
	}
	if settings.Auth.Enabled {
		log.Warnw("auth.signing_key not set; using a random key for this process")
	}
	return uuid.NewString()
}

func startRecorder(wg *sync.WaitGroup, broker *service.Broker, repos *repository.Repository, log *logger.Logger) {
	recorder := service.NewRecorder(repos.EventRepo, repos.SampleRepo, log)
	sub := broker.Subscribe(subscriberBuffer)
	wg.Add(1)
	go func() {
		defer wg.Done()
		recorder.Run(context.Background(), sub)
	}()
}

// startTelemetry connects the MQTT publisher when mqtt.broker is set.
// A broker that cannot be reached is logged and skipped.
func startTelemetry(wg *sync.WaitGroup, broker *service.Broker, settings *config.Settings, log *logger.Logger) telemetry.Client {
	if settings.MQTT.Broker == "" {
		return nil
	}
	client, err := telemetry.Connect(telemetry.ClientOpts{
		Broker:   settings.MQTT.Broker,
		ClientID: settings.MQTT.ClientID,
	}, log)
	if err != nil {
		log.Warnw("mqtt_disabled", "broker", settings.MQTT.Broker, "err", err)
		return nil
	}
	pub := telemetry.NewPublisher(client, settings.MQTT.TopicPrefix, log)
	sub := broker.Subscribe(subscriberBuffer)
	wg.Add(1)
	go func() {
		defer wg.Done()
		pub.Run(context.Background(), sub)
	}()
	return client
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, log *logger.Logger) {
	go func() {
		log.Infow("http server listening", "addr", srv.Addr())
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop the scheduler
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
