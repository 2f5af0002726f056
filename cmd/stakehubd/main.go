package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stakehub/config"
	"stakehub/core/events"
	"stakehub/crypto"
	nativecommon "stakehub/native/common"
	"stakehub/native/pool"
	"stakehub/native/token"
	"stakehub/observability/logging"
	"stakehub/rpc"
	"stakehub/storage/pooldb"
)

type logEmitter struct {
	log interface {
		Info(msg string, args ...any)
	}
}

func (e logEmitter) Emit(evt events.Event) {
	e.log.Info("ledger event", "type", evt.EventType())
}

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("stakehubd", cfg.ServiceEnv)

	owner, err := cfg.Owner()
	if err != nil {
		logger.Error("invalid owner address", "err", err)
		os.Exit(1)
	}
	contract, err := cfg.Contract()
	if err != nil {
		logger.Error("invalid contract address", "err", err)
		os.Exit(1)
	}

	store, err := pooldb.Open(cfg.DataDir)
	if err != nil {
		logger.Error("open state store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	engine := pool.NewEngine(owner, contract)
	engine.SetState(store)
	engine.SetEmitter(logEmitter{log: logger})
	engine.SetPauses(nativecommon.NewPauses(cfg.PausedModules...))

	// The remote token ledger is reached through the fire-and-forget
	// dispatcher. The in-memory sender stands in until a wire transport is
	// configured; swapping it out does not touch the engine.
	sender := token.NewMemoryLedger(contract)
	dispatcher := token.NewDispatcher(sender, logger)
	dispatcher.SetMetadataHandler(func(tok crypto.Address, meta token.Metadata) {
		if err := engine.ApplyTokenMetadata(tok, meta); err != nil {
			logger.Warn("apply token metadata", "token", tok.String(), "err", err)
		}
	})
	engine.SetLedger(dispatcher)
	defer dispatcher.Close()

	if cfg.MetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
		logger.Info("metrics listening", "addr", cfg.MetricsAddress)
	}

	server := rpc.NewServer(engine)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.RPCAddress)
	}()
	logger.Info("rpc listening", "addr", cfg.RPCAddress)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("rpc server stopped", "err", err)
		os.Exit(1)
	}
}
