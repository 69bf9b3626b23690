package main

// This package displays all queued mutations, useful for inspecting a stuck queue

import (
	"fmt"
	"time"

	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"

	"github.com/rentfolio/offlinesync/pkg/mutationstore"
)

var buildtime string

func main() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION")
	log := logger.New(logLevel)
	defer func(logger *zap.SugaredLogger) {
		_ = logger.Sync()
	}(log)

	zap.S().Infof("This is queue-debug build date: %s", buildtime)

	queuePath, _ := env.GetAsString("QUEUE_PATH", false, "/data/queue")

	store, err := mutationstore.Open(queuePath)
	if err != nil {
		zap.S().Fatalf("Error opening mutation store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			zap.S().Errorf("Error closing mutation store: %v", err)
		}
	}()

	mutations, err := store.ListAll()
	if err != nil {
		zap.S().Fatalf("Error listing mutations: %v", err)
	}

	fmt.Printf("%d queued mutations in %s\n", len(mutations), queuePath)
	for i, m := range mutations {
		age := time.Since(m.EnqueuedAt).Round(time.Second)
		fmt.Printf("%4d  %s  %-6s %-40s age %-10s payload %d bytes\n",
			i, m.ID, m.Method, m.Target, age, len(m.Payload))
	}
}
