package app

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/nmea_simulator/internal/config"
	"github.com/relabs-tech/nmea_simulator/internal/gps"
	"github.com/relabs-tech/nmea_simulator/internal/sink"
)

// RunConsoleMQTT subscribes to the raw and decoded topics and prints every
// message until Ctrl+C.
func RunConsoleMQTT(cfg *config.Config) error {
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("console: MQTT_BROKER is not set")
	}
	client, err := sink.ConnectMQTT(cfg.MQTTBroker, sink.ClientID(cfg.MQTTClientIDConsole, "nmea-console"))
	if err != nil {
		return err
	}

	// Subscribe to raw batches
	rawToken := client.Subscribe(cfg.TopicNMEA, 0, func(_ mqtt.Client, msg mqtt.Message) {
		printBatch(os.Stdout, msg.Payload())
	})
	rawToken.Wait()
	if rawToken.Error() != nil {
		return rawToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicNMEA)

	// Subscribe to decoded fixes
	fixToken := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := printFix(os.Stdout, msg.Payload(), cfg.PayloadFormat); err != nil {
			log.Printf("console: gps unmarshal error: %v", err)
		}
	})
	fixToken.Wait()
	if fixToken.Error() != nil {
		return fixToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicGPS)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func printBatch(w io.Writer, payload []byte) {
	lines := strings.Split(strings.TrimRight(string(payload), "\r\n"), "\r\n")
	fmt.Fprintf(w, "[NMEA]  %d sentences\n", len(lines))
	for _, l := range lines {
		fmt.Fprintf(w, "        %s\n", l)
	}
}

func printFix(w io.Writer, payload []byte, format string) error {
	f, err := gps.Decode(payload, format)
	if err != nil {
		return err
	}
	fmt.Fprintf(w,
		"[GPS ]  epoch=%d time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° alt=%.1fm sats=%d validity=%s\n",
		f.Epoch, f.Time, f.Date, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.AltitudeM, f.Satellites, f.Validity,
	)
	return nil
}
