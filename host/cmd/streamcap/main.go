// Command streamcap records frames streamed by a sensorstream board.
//
//	streamcap -device /dev/ttyACM0 -duration 30s -db capture.db
//	streamcap -config capture.yaml -mqtt mqtt://localhost:1883/lab/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"sensorstream/host/capture"
	"sensorstream/host/serial"
)

var (
	configPath = flag.String("config", "", "YAML capture config")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (ignored for USB CDC)")
	duration   = flag.Duration("duration", 0, "Stop after this long (0 = until interrupted)")
	dbPath     = flag.String("db", "", "Record frames to this SQLite database")
	mqttURL    = flag.String("mqtt", "", "Forward frames to this MQTT broker")
	command    = flag.String("cmd", "", "Send one command to the board and print the reply")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		glog.Errorf("capture failed: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*capture.Config, error) {
	cfg := capture.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = capture.LoadConfig(*configPath); err != nil {
			return nil, err
		}
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *duration != 0 {
		cfg.Duration = capture.Duration(*duration)
	}
	if *dbPath != "" {
		cfg.Storage = capture.StorageConfig{Path: *dbPath, Enabled: true}
	}
	if *mqttURL != "" {
		cfg.MQTT.URL = *mqttURL
		cfg.MQTT.Enabled = true
	}
	return cfg, cfg.Validate()
}

func run(cfg *capture.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, err := serial.Open(&cfg.Serial)
	if err != nil {
		return err
	}
	defer port.Close()
	if err := port.Flush(); err != nil {
		glog.Warningf("flushing %s: %v", cfg.Serial.Device, err)
	}
	glog.Infof("connected to %s", cfg.Serial.Device)

	var writers []capture.FrameWriter

	if cfg.Storage.Enabled {
		store := capture.NewStore(cfg.Storage.Path)
		defer store.Close()
		sessionID, err := store.CreateSession(ctx, cfg.Serial.Device, cfg)
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		glog.Infof("recording session %d to %s", sessionID, cfg.Storage.Path)
		writers = append(writers, store.Writer(ctx, sessionID))
	}

	if cfg.MQTT.Enabled {
		pub, err := capture.NewPublisher(cfg.MQTT, cfg)
		if err != nil {
			return err
		}
		if err := pub.Connect(5 * time.Second); err != nil {
			return err
		}
		defer pub.Close()
		glog.Infof("forwarding frames to %s", cfg.MQTT.URL)
		writers = append(writers, pub)
	}

	session := capture.NewSession(cfg, writers...)

	if *command != "" {
		return runCommand(ctx, session, port, *command)
	}

	session.OnReply(func(text string) { glog.Infof("board: %s", text) })
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Duration))
		defer cancel()
	}

	err = session.Run(ctx, port)
	fmt.Print(session.Report())
	return err
}

func runCommand(ctx context.Context, session *capture.Session, port serial.Port, line string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	replied := false
	session.OnReply(func(text string) {
		fmt.Println(text)
		replied = true
		cancel()
	})
	if err := session.SendCommand(port, line); err != nil {
		return err
	}
	if err := session.Run(ctx, port); err != nil {
		return err
	}
	if !replied {
		return fmt.Errorf("no reply to %q", line)
	}
	return nil
}
