package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/nmea_simulator/internal/app"
	"github.com/relabs-tech/nmea_simulator/internal/config"
)

func main() {
	configPath := flag.String("config", "nmea_config.txt", "path to config file")
	flag.Parse()

	log.Println("starting NMEA console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(config.Get()); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
