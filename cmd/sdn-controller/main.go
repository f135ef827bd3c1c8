package main

import (
	"Go2NetSDN/internal/alerter"
	"Go2NetSDN/internal/api"
	"Go2NetSDN/internal/channel"
	"Go2NetSDN/internal/classifier"
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/engine/manager"
	"Go2NetSDN/internal/metrics"
	"Go2NetSDN/internal/model"
	"Go2NetSDN/internal/notification"
	"Go2NetSDN/internal/recorder"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	configFile := pflag.StringP("config", "c", "configs/config.yaml", "Path to the configuration file")
	pflag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Logging.Apply(); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	log.Info("Starting sdn-controller...")

	// 2. Connect the switch channel
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	nc, err := channel.Connect(ctx, cfg.Channel)
	if err != nil {
		log.Fatalf("Failed to connect switch channel: %v", err)
	}
	var sw model.SwitchChannel = nc
	if cfg.Channel.OVS.Enabled {
		ovsRules, err := channel.NewOVS(cfg.Channel.OVS)
		if err != nil {
			log.Fatalf("Failed to create ovs rule installer: %v", err)
		}
		sw = channel.NewComposite(nc, ovsRules)
	}

	// 3. Build the optional pipeline stages
	met := metrics.New()
	opts := []manager.Option{manager.WithMetrics(met)}

	var clf model.Classifier
	if cfg.Mitigation.Enabled {
		clf, err = classifier.New(cfg.Classifier)
		if err != nil {
			log.Fatalf("Failed to create classifier: %v", err)
		}
	}
	if cfg.Recorder.Enabled {
		rec, err := recorder.New(cfg.Recorder)
		if err != nil {
			log.Fatalf("Failed to create sample recorder: %v", err)
		}
		opts = append(opts, manager.WithRecorder(rec))
	}
	if cfg.Alerter.Enabled {
		var notifier model.Notifier
		if cfg.SMTP.Host != "" {
			notifier = notification.NewEmailNotifier(cfg.SMTP)
		}
		al, err := alerter.NewAlerter(&cfg.Alerter, notifier)
		if err != nil {
			log.Fatalf("Failed to create alerter: %v", err)
		}
		opts = append(opts, manager.WithBlockListener(al))
	}

	// 4. Start the event loop and feed it from the channel
	mgr, err := manager.NewManager(cfg, sw, clf, opts...)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}
	mgr.Start()

	if err := nc.Start(func(ev model.Event) {
		if err := mgr.Submit(ev); err != nil && !errors.Is(err, manager.ErrStopped) {
			log.WithError(err).Warn("Dropping switch event")
		}
	}); err != nil {
		log.Fatalf("Failed to subscribe to switch events: %v", err)
	}

	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(cfg.API.ListenAddr, mgr, met.Handler())
		server.Start()
	}

	// 5. Wait for a shutdown signal for graceful shutdown
	<-ctx.Done()
	log.Info("Shutdown signal received, stopping controller...")

	if server != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Admin API forced to shutdown")
		}
		done()
	}
	mgr.Stop()
	if c, ok := clf.(io.Closer); ok {
		c.Close()
	}
	nc.Close()
	log.Info("Shutdown complete.")
}
