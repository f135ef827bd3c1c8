package main

import (
	"Go2NetSDN/internal/classifier"
	"Go2NetSDN/internal/config"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
)

func main() {
	configFile := pflag.StringP("config", "c", "configs/config.yaml", "Path to the configuration file")
	modelType := pflag.String("type", "", "Classifier to serve (threshold or tree); defaults to classifier.type")
	listenAddr := pflag.String("listen", "", "gRPC listen address; defaults to classifier.listen_addr")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Logging.Apply(); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	clfCfg := cfg.Classifier
	if *modelType != "" {
		clfCfg.Type = *modelType
	}
	if strings.EqualFold(clfCfg.Type, "remote") {
		log.Fatalf("sdn-classifier serves a local model; classifier type must be threshold or tree")
	}
	addr := clfCfg.ListenAddr
	if *listenAddr != "" {
		addr = *listenAddr
	}

	clf, err := classifier.New(clfCfg)
	if err != nil {
		log.Fatalf("Failed to create classifier: %v", err)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	s := grpc.NewServer()
	classifier.RegisterClassifierServer(s, clf)

	go func() {
		log.Infof("Classifier gRPC server (%s) starting on %s", clfCfg.Type, addr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Classifier server shutting down...")

	s.GracefulStop()
}
