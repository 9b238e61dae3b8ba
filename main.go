package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"docpipe/cmd"
	"docpipe/internal/config"
	"docpipe/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Commands that only need part of the configuration still get the
	// configured logger when the full set does not resolve.
	cfg, err := config.Load(config.Env{})
	if err != nil {
		if err := logger.Setup(config.LoggerConfigFromEnv(config.Env{})); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting docpipe")

	cmd.Execute()

	os.Exit(0)
}
