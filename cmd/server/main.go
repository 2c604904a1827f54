package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"linkrails/internal/config"
	"linkrails/internal/issuer"
	"linkrails/internal/journal"
	"linkrails/internal/linker"
	"linkrails/internal/server"
	"linkrails/internal/wallet"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.Service.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("invalid log level %q, using info", cfg.Service.LogLevel)
	}

	ctx := context.Background()

	var store journal.Store
	var pgStore *journal.PostgresStore
	if cfg.Service.DatabaseURL != "" {
		pgStore, err = journal.NewPostgresStore(ctx, cfg.Service.DatabaseURL)
		if err != nil {
			log.Fatalf("journal store error: %v", err)
		}
		store = pgStore
		log.Info("issuance journal backed by postgres")
	} else {
		store = journal.NewMemoryStore()
		log.Warn("DATABASE_URL not set, issuance journal is in-memory only")
	}

	signer, err := wallet.New(ctx, wallet.Config{
		RPCURL:   cfg.Chain.RPCURL,
		ChainID:  cfg.Chain.ChainID,
		Mnemonic: cfg.Chain.Mnemonic,
	})
	if err != nil {
		log.Fatalf("wallet error: %v", err)
	}
	log.WithFields(logrus.Fields{
		"address":  signer.Address(),
		"chain_id": cfg.Chain.ChainID,
	}).Info("custody wallet ready")

	issuerClient := issuer.NewHTTPClient(cfg.Link.BaseURL, cfg.Link.RequestTimeout, log)

	workflow := linker.NewWorkflow(issuerClient, signer, store, cfg.Chain.ChainID, cfg.Chain.TokenDecimals, log)

	apiServer := server.NewServer(cfg, workflow, signer.Ping, log)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Infof("server stopped: %v", err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)

	signer.Close()
	if pgStore != nil {
		pgStore.Close()
	}
}
