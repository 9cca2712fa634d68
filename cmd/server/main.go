package main

import (
	"flag"
	"log"
	"os"

	approuters "github.com/nikspatil0120/eduplatform-sub001/internal/app_routers"
	"github.com/nikspatil0120/eduplatform-sub001/internal/configuration"
)

func main() {
	configPath := flag.String("config", "", "path to the JSON config file")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("EDUPLATFORM_CONFIG")
	}
	if path == "" {
		path = "config.json"
	}

	container, err := configuration.BuildContainer(path)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	// Setup routers
	approuters.StartServer(container)
}
