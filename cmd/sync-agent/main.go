package main

/*
Headless write-pipeline agent: captures admin-client writes while the API is
unreachable and replays them in order once connectivity returns.
*/

import (
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"

	"github.com/rentfolio/offlinesync/internal"
	"github.com/rentfolio/offlinesync/pkg/connectivity"
	"github.com/rentfolio/offlinesync/pkg/pipeline"
	"github.com/rentfolio/offlinesync/pkg/replay"
)

var buildtime string

func main() {
	// Initialize zap logging
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION")
	log := logger.New(logLevel)
	defer func(logger *zap.SugaredLogger) {
		err := logger.Sync()
		if err != nil {
			panic(err)
		}
	}(log)

	zap.S().Infof("This is sync-agent build date: %s", buildtime)

	internal.Initfgtrace()

	zap.S().Debug("Setting up metrics")
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe(":2112", nil)
		if err != nil {
			zap.S().Errorf("Error starting metrics: %s", err)
		}
	}()

	apiBaseURL, err := env.GetAsString("API_BASE_URL", true, "")
	if err != nil {
		zap.S().Fatal(err)
	}
	brokerURL, err := env.GetAsString("MQTT_BROKER_URL", true, "")
	if err != nil {
		zap.S().Fatal(err)
	}
	clientID, _ := env.GetAsString("MQTT_CLIENT_ID", false, "sync-agent")
	brokerPassword, _ := env.GetAsString("MQTT_BROKER_PASSWORD", false, "")
	queuePath, _ := env.GetAsString("QUEUE_PATH", false, "/data/queue")

	requestTimeout, err := env.GetAsInt("REQUEST_TIMEOUT_SECONDS", false, 30)
	if err != nil {
		zap.S().Warn(err)
	}
	retryMaxAttempts, err := env.GetAsInt("RETRY_MAX_ATTEMPTS", false, 1)
	if err != nil {
		zap.S().Warn(err)
	}
	retrySlotTimeMs, err := env.GetAsInt("RETRY_SLOT_TIME_MS", false, 100)
	if err != nil {
		zap.S().Warn(err)
	}
	retryMaxBackoffMs, err := env.GetAsInt("RETRY_MAX_BACKOFF_MS", false, 5000)
	if err != nil {
		zap.S().Warn(err)
	}

	zap.S().Debugf("Setting up pipeline")

	p, err := pipeline.New(pipeline.Options{
		StorePath: queuePath,
		Executor:  replay.NewHTTPExecutor(apiBaseURL, time.Duration(requestTimeout)*time.Second),
		Notifier:  connectivity.NewMQTTNotifier(brokerURL, clientID, brokerPassword),
		Retry: replay.RetryPolicy{
			MaxAttempts: retryMaxAttempts,
			SlotTime:    time.Duration(retrySlotTimeMs) * time.Millisecond,
			MaxBackoff:  time.Duration(retryMaxBackoffMs) * time.Millisecond,
		},
		OnDegraded: func(err error) {
			zap.S().Errorf("Durable queue unavailable, mutations are held in memory for this session only: %v", err)
		},
	})
	if err != nil {
		zap.S().Fatalf("Error setting up pipeline: %v", err)
	}

	zap.S().Debugf("Setting up healthcheck")
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000000))
	health.AddReadinessCheck("mutation-store", func() error {
		_, err := p.Store().ListAll()
		return err
	})
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe("0.0.0.0:8086", health)
		if err != nil {
			zap.S().Errorf("Error starting healthcheck: %s", err)
		}
	}()

	gs := internal.NewGracefulShutdown(func() error {
		zap.S().Infof("Shutting down with %d queued mutations", p.QueueLength())
		return p.Close()
	})
	gs.Wait()
}
