package assets

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/aman-zulfiqar/amm-engine/internal/algod"
	"github.com/aman-zulfiqar/amm-engine/internal/amm"
)

type Fetcher interface {
	AssetInformation(ctx context.Context, assetID uint64) (*algod.Asset, error)
}

type RegistryConfig struct {
	Fetcher Fetcher
	Cache   Cache // defaults to a MemoryCache
	Logger  *logrus.Logger
}

// Registry resolves asset metadata through a cache. Concurrent misses for the
// same id share one fetch.
type Registry struct {
	fetcher Fetcher
	cache   Cache
	logger  *logrus.Logger
	group   singleflight.Group
}

func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("assets: fetcher is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Registry{fetcher: cfg.Fetcher, cache: cfg.Cache, logger: cfg.Logger}, nil
}

func (r *Registry) Info(ctx context.Context, id uint64) (Info, error) {
	if id == Algo.ID {
		return Algo, nil
	}

	info, ok, err := r.cache.Get(ctx, id)
	if err != nil {
		r.logger.WithError(err).WithField("asset", id).Warn("asset cache read failed")
	} else if ok {
		return info, nil
	}

	v, err, _ := r.group.Do(strconv.FormatUint(id, 10), func() (any, error) {
		asset, err := r.fetcher.AssetInformation(ctx, id)
		if err != nil {
			return Info{}, fmt.Errorf("fetch asset %d: %w", id, err)
		}
		info := Info{
			ID:       asset.Index,
			Name:     asset.Params.Name,
			UnitName: asset.Params.UnitName,
			Decimals: asset.Params.Decimals,
		}
		if err := r.cache.Set(ctx, info); err != nil {
			r.logger.WithError(err).WithField("asset", id).Warn("asset cache write failed")
		}
		return info, nil
	})
	if err != nil {
		return Info{}, err
	}
	return v.(Info), nil
}

// ToBaseUnits converts a display amount of an asset to base units.
func (r *Registry) ToBaseUnits(ctx context.Context, id uint64, amount decimal.Decimal) (uint64, error) {
	info, err := r.Info(ctx, id)
	if err != nil {
		return 0, err
	}
	return amm.ToBaseUnits(amount, info.Decimals)
}

func (r *Registry) FromBaseUnits(ctx context.Context, id uint64, amount uint64) (decimal.Decimal, error) {
	info, err := r.Info(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return amm.FromBaseUnits(amount, info.Decimals), nil
}
