package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ipchain/config"
	"ipchain/core"
	"ipchain/crypto"
	"ipchain/native/royalty"
	"ipchain/observability/logging"
	"ipchain/rpc"
	"ipchain/storage"
)

var genesisAppliedKey = []byte("genesis:applied")

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memory := flag.Bool("memory", false, "Run with an in-memory database (state is discarded on exit)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("IPCHAIN_ENV"))
	logger := logging.Setup("ipchaind", env, os.Getenv("IPCHAIN_LOG_LEVEL"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	var db storage.Database
	if *memory {
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("Failed to open database", slog.String("path", cfg.DataDir), slog.Any("error", err))
			os.Exit(1)
		}
		db = leveldb
	}
	defer db.Close()

	// os.Exit skips deferred calls, so failure paths below must release the
	// database (and its LevelDB lock file) themselves.
	node, err := buildNode(db, cfg)
	if err != nil {
		logger.Error("Failed to initialise node", slog.Any("error", err))
		db.Close()
		os.Exit(1)
	}

	if err := applyGenesis(db, node, cfg, logger); err != nil {
		logger.Error("Failed to apply genesis allocations", slog.Any("error", err))
		db.Close()
		os.Exit(1)
	}

	rpcServer := rpc.NewServer(node)
	rpcHTTP := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           rpcServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	opsHTTP := &http.Server{
		Addr:              cfg.OpsAddress,
		Handler:           opsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("JSON-RPC listening", slog.String("address", cfg.RPCAddress), slog.String("network", cfg.NetworkName))
		if err := rpcHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("rpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("Ops endpoint listening", slog.String("address", cfg.OpsAddress))
		if err := opsHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("ops server: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("Server failed", slog.Any("error", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = rpcHTTP.Shutdown(ctx)
	_ = opsHTTP.Shutdown(ctx)
}

func buildNode(db storage.Database, cfg *config.Config) (*core.Node, error) {
	vault, err := crypto.ParseAddress(cfg.EscrowVault)
	if err != nil {
		return nil, fmt.Errorf("escrow vault: %w", err)
	}
	var policy royalty.ResidualPolicy
	switch cfg.ResidualPolicy {
	case "largest_remainder":
		policy = royalty.ResidualLargestRemainder
	default:
		policy = royalty.ResidualFirstBeneficiary
	}
	return core.NewNode(db, core.NodeConfig{
		EscrowVault:      vault,
		ResidualPolicy:   policy,
		AllowZeroPayment: cfg.AllowZeroPayment,
		PausedModules:    cfg.PausedModules,
	})
}

// applyGenesis seeds the configured payment balances exactly once per
// database; a marker key prevents re-application on restart.
func applyGenesis(db storage.Database, node *core.Node, cfg *config.Config, logger *slog.Logger) error {
	if len(cfg.Genesis) == 0 {
		return nil
	}
	applied, err := db.Get(genesisAppliedKey)
	if err != nil {
		return err
	}
	if applied != nil {
		return nil
	}
	for _, alloc := range cfg.Genesis {
		account, err := crypto.ParseAddress(alloc.Address)
		if err != nil {
			return fmt.Errorf("genesis allocation: %w", err)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(alloc.Amount), 10)
		if !ok || amount.Sign() <= 0 {
			return fmt.Errorf("genesis allocation for %s: invalid amount %q", alloc.Address, alloc.Amount)
		}
		if err := node.FundAccount(account, amount); err != nil {
			return err
		}
		logger.Info("Applied genesis allocation", slog.String("account", alloc.Address), slog.String("amount", amount.String()))
	}
	return db.Put(genesisAppliedKey, []byte{1})
}

func opsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
