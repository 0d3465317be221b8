package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-engine/internal/algod"
	"github.com/aman-zulfiqar/amm-engine/internal/assets"
	"github.com/aman-zulfiqar/amm-engine/internal/cache"
	"github.com/aman-zulfiqar/amm-engine/internal/config"
	"github.com/aman-zulfiqar/amm-engine/internal/engine"
	"github.com/aman-zulfiqar/amm-engine/internal/flags"
	"github.com/aman-zulfiqar/amm-engine/internal/logicsig"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
	"github.com/aman-zulfiqar/amm-engine/internal/storage"
	"github.com/aman-zulfiqar/amm-engine/internal/wallet"
)

// App is everything a binary needs, built from one Config.
type App struct {
	Config *config.Config
	Logger *logrus.Logger

	Algod  *algod.Client
	Engine *engine.Engine
	Assets *assets.Registry
	Wallet *wallet.Wallet // nil when quote-only

	// Redis-backed parts; nil when redis-addr is empty.
	Redis  *redis.Client
	Flags  *flags.Store
	PubSub *cache.PubSubManager
}

// New connects every configured backend and builds the engine. Redis and
// ClickHouse are optional; a configured but unreachable backend is an error.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logrus.New()
	}
	a := &App{Config: cfg, Logger: logger}

	// 1. algod client
	a.Algod = algod.NewClient(algod.ClientConfig{
		BaseURL:      cfg.AlgodURL,
		Token:        cfg.AlgodToken,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})

	// 2. pool program template
	tmpl, err := logicsig.LoadTemplate(cfg.ASCPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool program: %w", err)
	}
	deriver, err := logicsig.NewDeriver(tmpl, logicsig.DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create deriver: %w", err)
	}

	// 3. initiator wallet
	var signer *wallet.Wallet
	if cfg.WalletKey != "" {
		signer, err = wallet.NewWallet(wallet.WalletConfig{PrivateKey: cfg.WalletKey})
		if err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
		logger.WithField("address", signer.String()).Info("wallet loaded")
		a.Wallet = signer
	} else {
		logger.Warn("no wallet key configured, engine is quote-only")
	}

	// 4. Redis: halts, asset cache and execution pub/sub
	var assetCache assets.Cache
	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			_ = a.Redis.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		if a.Flags, err = flags.NewStore(a.Redis); err != nil {
			_ = a.Redis.Close()
			return nil, fmt.Errorf("failed to create flags store: %w", err)
		}
		a.PubSub = cache.NewPubSubManager(a.Redis, logger)
		assetCache = cache.NewRedisAssetCache(a.Redis)
	}

	// 5. asset registry
	a.Assets, err = assets.NewRegistry(assets.RegistryConfig{Fetcher: a.Algod, Cache: assetCache, Logger: logger})
	if err != nil {
		a.closeRedis()
		return nil, fmt.Errorf("failed to create asset registry: %w", err)
	}

	// 6. ClickHouse execution history
	var store storage.ExecutionStore
	if cfg.ClickHouseAddr != "" {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			a.closeRedis()
			return nil, err
		}
		store = ch
	}

	// 7. protocol version
	proto, err := engine.ProtocolFor(pool.Version(cfg.ProtocolVersion))
	if err != nil {
		a.closeRedis()
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	// 8. engine
	ecfg := engine.Config{
		Ledger:         a.Algod,
		Deriver:        deriver,
		Protocol:       proto,
		ValidatorAppID: cfg.ValidatorAppID,
		PollInterval:   cfg.PollInterval,
		Risk: engine.RiskConfig{
			MaxPriceImpactBps:  cfg.MaxPriceImpactBps,
			DefaultSlippageBps: cfg.DefaultSlippageBps,
			MaxSlippageBps:     cfg.MaxSlippageBps,
		},
		Assets: a.Assets,
		Store:  store,
		Logger: logger,
	}
	// typed nils must not reach the interface fields
	if signer != nil {
		ecfg.Signer = signer
	}
	if a.Redis != nil {
		ecfg.Halts = a.Flags
		ecfg.Publisher = a.PubSub
		ecfg.Closers = append(ecfg.Closers, a.Redis)
	}

	a.Engine, err = engine.New(ecfg)
	if err != nil {
		a.closeRedis()
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"network":  cfg.Network,
		"version":  cfg.ProtocolVersion,
		"app_id":   cfg.ValidatorAppID,
		"redis":    a.Redis != nil,
		"history":  store != nil,
		"can_sign": signer != nil,
	}).Info("amm engine ready")

	return a, nil
}

// Close releases the engine and everything it owns.
func (a *App) Close() error {
	if a.Engine == nil {
		return nil
	}
	return a.Engine.Close()
}

func (a *App) closeRedis() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
