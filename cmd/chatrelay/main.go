// Command chatrelay runs the chat relay server: a single-request proxy that
// forwards dating-app conversations to the Anthropic API with prompt-cache
// windowing and usage accounting.
package main

import (
	"flag"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/sparkmatch/chatrelay/internal/cmd"
	"github.com/sparkmatch/chatrelay/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Local development keeps credentials in .env; absence is fine.
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment from .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	cmd.StartService(cfg, *configPath)
}
