package main

import (
	"Go2NetSDN/internal/channel"
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/model"
	"Go2NetSDN/pkg/pcap"
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	configFile := pflag.StringP("config", "c", "configs/config.yaml", "Path to the configuration file")
	dpidFlag := pflag.String("dpid", "1", "Datapath id the frames are attributed to")
	inPort := pflag.Uint32("in-port", 1, "Ingress port reported for every frame")
	ports := pflag.UintSlice("ports", []uint{1, 2, 3}, "Ports announced in the switch_connected event")
	speed := pflag.Float64("speed", 0, "Replay speed relative to capture time; 0 replays as fast as possible")
	connect := pflag.Bool("connect", true, "Announce the switch before replaying")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sdn-replay [flags] <path_to_pcap_file>\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	// 1. Get pcap file path from command-line arguments
	if pflag.NArg() < 1 {
		pflag.Usage()
		os.Exit(1)
	}
	pcapFilePath := pflag.Arg(0)

	dpid, err := model.ParseDatapathID(*dpidFlag)
	if err != nil {
		log.Fatalf("Invalid --dpid: %v", err)
	}

	// 2. Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Logging.Apply(); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// 3. Open the capture and the channel
	reader, err := pcap.NewReader(pcapFilePath)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer reader.Close()

	nc, err := channel.Connect(context.Background(), cfg.Channel)
	if err != nil {
		log.Fatalf("Failed to connect switch channel: %v", err)
	}
	defer nc.Close()

	if *connect {
		announced := make([]model.PortNo, 0, len(*ports))
		for _, p := range *ports {
			announced = append(announced, model.PortNo(p))
		}
		if err := nc.PublishEvent(model.SwitchConnected{DPID: dpid, Ports: announced}); err != nil {
			log.Fatalf("Failed to announce switch: %v", err)
		}
	}

	// 4. Replay every frame as a packet-in
	frames := make(chan pcap.Frame, 64)
	errc := make(chan error, 1)
	go func() { errc <- reader.ReadFrames(frames) }()

	log.Infof("Replaying '%s' as switch %s port %d...", pcapFilePath, dpid, *inPort)
	sent := 0
	var prev time.Time
	for f := range frames {
		if *speed > 0 && !prev.IsZero() {
			if gap := f.Timestamp.Sub(prev); gap > 0 {
				time.Sleep(time.Duration(float64(gap) / *speed))
			}
		}
		prev = f.Timestamp

		ev := model.PacketIn{DPID: dpid, InPort: model.PortNo(*inPort), BufferID: model.NoBuffer, Data: f.Data}
		if err := nc.PublishEvent(ev); err != nil {
			log.WithError(err).Warn("Failed to publish packet-in")
			continue
		}
		sent++
	}
	if err := <-errc; err != nil {
		log.WithError(err).Error("Stopped reading capture early")
	}

	if err := nc.Flush(); err != nil {
		log.WithError(err).Warn("Failed to flush NATS connection")
	}
	log.Infof("Finished replay: %d packet-in events published.", sent)
}
