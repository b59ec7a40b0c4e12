package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"giftledger/config"
	"giftledger/core/events"
	"giftledger/native/bank"
	"giftledger/native/gift"
	"giftledger/native/oracle"
	"giftledger/native/treasury"
	"giftledger/observability/logging"
	"giftledger/observability/metrics"
	"giftledger/rpc"
	"giftledger/storage"
)

const blockInterval = 2 * time.Second

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("GIFTD_ENV"))
	logger := logging.Setup("giftd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.Storage.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	store, err := storage.OpenLedgerStore(db)
	if err != nil {
		logger.Error("Failed to open ledger store", slog.Any("error", err))
		os.Exit(1)
	}

	instanceID, err := cfg.InstanceID()
	if err != nil {
		logger.Error("Invalid instance id", slog.Any("error", err))
		os.Exit(1)
	}
	rewardAsset, err := config.ParseAddress(cfg.Ledger.RewardAsset)
	if err != nil {
		logger.Error("Invalid reward asset", slog.Any("error", err))
		os.Exit(1)
	}
	treasuryAddr, err := config.ParseAddress(cfg.Ledger.Treasury)
	if err != nil {
		logger.Error("Invalid treasury address", slog.Any("error", err))
		os.Exit(1)
	}
	swapSettings, err := cfg.SwapSettings()
	if err != nil {
		logger.Error("Invalid swap settings", slog.Any("error", err))
		os.Exit(1)
	}
	table, err := cfg.CommissionTable()
	if err != nil {
		logger.Error("Invalid commission table", slog.Any("error", err))
		os.Exit(1)
	}

	var pool oracle.TwapPool
	if cfg.Oracle.Pool != nil {
		asset0, err := config.ParseAddress(cfg.Oracle.Pool.Asset0)
		if err != nil {
			logger.Error("Invalid pool asset0", slog.Any("error", err))
			os.Exit(1)
		}
		asset1, err := config.ParseAddress(cfg.Oracle.Pool.Asset1)
		if err != nil {
			logger.Error("Invalid pool asset1", slog.Any("error", err))
			os.Exit(1)
		}
		pool = oracle.NewStaticPool(asset0, asset1, cfg.Oracle.Pool.Tick)
	}
	adapter, err := oracle.NewAdapter(rewardAsset, pool, cfg.Oracle.SecondsAgo)
	if err != nil {
		logger.Error("Failed to build oracle adapter", slog.Any("error", err))
		os.Exit(1)
	}

	metricsEmitter, err := metrics.NewEmitter(nil)
	if err != nil {
		logger.Error("Failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}
	emitter := events.NewMultiEmitter(metricsEmitter)

	// The custody vault address is derived from the instance id so two
	// ledgers sharing a bank never share holdings.
	var vault [20]byte
	copy(vault[:], ethcrypto.Keccak256([]byte("giftledger/vault"), instanceID[:])[12:])
	custody := bank.New(vault, treasuryAddr, gift.NativeAsset, swapSettings.WrappedNative, rewardAsset)

	engine := gift.NewEngine(instanceID)
	engine.SetState(store)
	engine.SetCustody(custody)
	engine.SetValuer(adapter)
	engine.SetFeedRegistry(adapter)
	engine.SetEmitter(emitter)
	if err := engine.SetRewardAsset(rewardAsset); err != nil {
		logger.Error("Failed to set reward asset", slog.Any("error", err))
		os.Exit(1)
	}
	if err := engine.SetTreasury(treasuryAddr); err != nil {
		logger.Error("Failed to set treasury", slog.Any("error", err))
		os.Exit(1)
	}
	if err := engine.SetCommissionTable(table); err != nil {
		logger.Error("Failed to set commission table", slog.Any("error", err))
		os.Exit(1)
	}
	if err := engine.SetRefundSettings(cfg.RefundSettings()); err != nil {
		logger.Error("Failed to set refund settings", slog.Any("error", err))
		os.Exit(1)
	}
	start := time.Now()
	engine.SetBlockFunc(func() uint64 {
		return uint64(time.Since(start) / blockInterval)
	})

	if err := registerFeeds(cfg, engine, adapter); err != nil {
		logger.Error("Failed to register price feeds", slog.Any("error", err))
		os.Exit(1)
	}

	splitter := treasury.NewSplitter(treasuryAddr, rewardAsset)
	splitter.SetLedger(engine)
	splitter.SetBank(custody)
	splitter.SetValuer(adapter)
	splitter.SetEmitter(emitter)
	if err := splitter.SetSplitSettings(cfg.SplitSettings()); err != nil {
		logger.Error("Failed to set split settings", slog.Any("error", err))
		os.Exit(1)
	}
	if err := splitter.SetSwapSettings(swapSettings); err != nil {
		logger.Error("Failed to set swap settings", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(engine, splitter, logger)
	httpSrv := &http.Server{
		Addr:              cfg.RPC.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("RPC listening", slog.String("address", cfg.RPC.ListenAddress))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown error", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

// registerFeeds binds every configured push feed. The native asset is
// implicitly allowed, so its feed goes straight onto the adapter; everything
// else is registered through the engine to enter the allow-list too.
func registerFeeds(cfg *config.Config, engine *gift.Engine, adapter *oracle.Adapter) error {
	var assets [][20]byte
	var feeds []oracle.PriceFeed
	for _, feedCfg := range cfg.Oracle.Feeds {
		asset, err := config.ParseAddress(feedCfg.Asset)
		if err != nil {
			return err
		}
		answer, err := config.ParseBig(feedCfg.Answer)
		if err != nil {
			return err
		}
		feed := oracle.NewStaticFeed(answer, feedCfg.Decimals)
		if asset == gift.NativeAsset {
			adapter.SetFeed(asset, feed)
			continue
		}
		assets = append(assets, asset)
		feeds = append(feeds, feed)
	}
	if len(assets) == 0 {
		return nil
	}
	return engine.AddAllowedAssets(assets, feeds)
}
