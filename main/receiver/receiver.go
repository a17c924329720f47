package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jd3nn1s/telelink"
	"github.com/jd3nn1s/telelink/forwarder"
	"github.com/jd3nn1s/telelink/serialport"
	log "github.com/sirupsen/logrus"
)

const pollInterval = 100 * time.Millisecond

var configFile = flag.String("config", "", "configuration file, defaults are used when empty")
var portName = flag.String("port", "", "serial port of the radio modem, overrides the configuration")
var printTelemetry = flag.Bool("print-telemetry", false, "print telemetry to stdout")
var forwarderConfig = flag.String("forwarder-config", "", "forwarder configuration file")
var listPorts = flag.Bool("list-ports", false, "list serial ports and exit")

func main() {
	flag.Parse()

	if *listPorts {
		ports, err := serialport.List()
		if err != nil {
			log.Fatal(err)
		}
		for _, p := range ports {
			fmt.Printf("%s\t%s\n", p.Name, p.Description)
		}
		return
	}

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

	rx := telelink.NewReceiver(telelink.ReceiverConfig{
		Port:        cfg.Link.Port,
		Baud:        cfg.Link.Baud,
		Markers:     cfg.Link.Markers,
		ReadTimeout: cfg.Link.ReceiverReadTimeout(),
	})
	if err := rx.Start(); err != nil {
		log.Fatal(err)
	}
	defer rx.Stop()

	gs := telelink.NewGroundStation(rx)
	if *forwarderConfig != "" {
		addForwarders(ctx, gs, *forwarderConfig)
	}

	var onUpdate func(telelink.TelemetryRecord)
	if *printTelemetry {
		onUpdate = func(rec telelink.TelemetryRecord) {
			fmt.Printf("%+v\n", rec)
		}
	}
	if err := gs.Run(ctx, pollInterval, cfg.Link.StatsInterval, onUpdate); err != nil && err != context.Canceled {
		log.Error(err)
	}
}

func addForwarders(ctx context.Context, gs *telelink.GroundStation, fileName string) {
	config, err := forwarder.LoadConfig(fileName)
	if err != nil {
		log.Fatal("unable to load forwarder configuration: ", err)
	}
	if config.UDP != nil {
		fwder, err := forwarder.NewUDPForwarder(config.UDP)
		if err != nil {
			log.Fatal("unable to load UDP forwarder: ", err)
		}
		go fwder.Start(ctx)
		gs.AddForwarder(fwder)
	}
	if config.MQTT != nil {
		fwder, err := forwarder.NewMQTTForwarder(config.MQTT)
		if err != nil {
			log.Fatal("unable to load MQTT forwarder: ", err)
		}
		go fwder.Start(ctx)
		gs.AddForwarder(fwder)
	}
}
