package main

import (
	"log"
	"os"

	"tipstream/internal/app"
	"tipstream/internal/config"
)

func main() {
	cfgPath := os.Getenv("CONFIG")
	if cfgPath == "" {
		cfgPath = "cmd/indexer/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config, error=%v", err)
	}

	if err = app.Run(cfg); err != nil {
		log.Fatalf("App run failed, error=%v", err)
	}
}
