package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jd3nn1s/telelink"
	"github.com/jd3nn1s/telelink/serialport"
	log "github.com/sirupsen/logrus"
)

var configFile = flag.String("config", "", "configuration file, defaults are used when empty")
var testMode = flag.Bool("testmode", false, "generate test data instead of reading the car")
var portName = flag.String("port", "", "serial port of the radio modem, overrides the configuration")

func main() {
	flag.Parse()

	cfg := telelink.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = telelink.LoadConfig(*configFile)
		if err != nil {
			log.Fatal("unable to load configuration: ", err)
		}
	}
	if err := telelink.SetupLogging(cfg.Log); err != nil {
		log.Fatal("unable to setup logging: ", err)
	}
	if *portName != "" {
		cfg.Link.Port = *portName
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cache := telelink.NewSampleCache()
	if *testMode {
		log.Info("test mode, generating signals")
		telelink.RunTestMode(ctx, cache)
	} else {
		if cfg.CAN.Enabled {
			go telelink.RunCAN(ctx, cfg.CAN.Interface, cache)
		}
		if cfg.ECU.Enabled {
			go telelink.RunECU(ctx, cfg.ECU.Port, cache)
		}
	}

	name := cfg.Link.Port
	if name == "" {
		detected, err := serialport.Detect()
		if err != nil {
			log.Fatal("unable to find radio modem: ", err)
		}
		name = detected
	}
	port, err := serialport.Open(name, cfg.Link.Baud, cfg.Link.TransmitterReadTimeout())
	if err != nil {
		log.Fatal(err)
	}
	defer port.Close()
	log.WithFields(log.Fields{
		"port": name,
		"baud": cfg.Link.Baud,
	}).Info("radio modem opened")

	tx, err := telelink.NewTransmitter(telelink.TransmitterConfig{
		Rates:          cfg.Rates,
		Markers:        cfg.Link.Markers,
		LinkCeilingBps: cfg.Link.LinkCeilingBps,
		StatsInterval:  cfg.Link.StatsInterval,
	}, cache, port)
	if err != nil {
		log.Fatal("unable to create transmitter: ", err)
	}
	if err := tx.Run(ctx); err != nil && err != context.Canceled {
		log.Error(err)
	}
	log.Info("transmitter stopped")
}
