package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-engine/internal/algod"
	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/assets"
	"github.com/aman-zulfiqar/amm-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-engine/internal/excess"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
	"github.com/aman-zulfiqar/amm-engine/internal/storage"
	"github.com/aman-zulfiqar/amm-engine/internal/txgroup"
)

// Ledger is the slice of the algod API the engine consumes.
type Ledger interface {
	TransactionParams(ctx context.Context) (*algod.TransactionParams, error)
	AccountInformation(ctx context.Context, address string) (*algod.Account, error)
	SendRawTransaction(ctx context.Context, blob []byte) (string, error)
	PendingTransactionInformation(ctx context.Context, txID string) (*algod.PendingTransaction, error)
}

// ProgramDeriver yields the pool program account of an asset pair.
type ProgramDeriver interface {
	Derive(asset1, asset2, appID uint64) (txgroup.ProgramAccount, error)
}

// AssetInfo resolves asset metadata. Only used to name pool tokens.
type AssetInfo interface {
	Info(ctx context.Context, id uint64) (assets.Info, error)
}

// Config wires the engine's collaborators. Signer, Halts, Assets, Publisher
// and Store are optional; without a Signer the engine only quotes.
type Config struct {
	Ledger         Ledger
	Deriver        ProgramDeriver
	Signer         txgroup.Signer
	Protocol       Protocol
	ValidatorAppID uint64
	PollInterval   time.Duration
	Risk           RiskConfig

	Halts     HaltChecker
	Assets    AssetInfo
	Publisher storage.ExecutionPublisher
	Store     storage.ExecutionStore

	// FallbackMessage is the classifier's message for unrecognized failures.
	FallbackMessage string
	Logger          *logrus.Logger

	// Closers are released by Close after the store.
	Closers []io.Closer
}

// Engine quotes and executes pool operations for one contract version.
type Engine struct {
	ledger     Ledger
	deriver    ProgramDeriver
	signer     txgroup.Signer
	protocol   Protocol
	appID      uint64
	poll       time.Duration
	risk       *RiskManager
	reader     *pool.Reader
	excess     *excess.LedgerReader
	reconciler *excess.Reconciler
	assets     AssetInfo
	publisher  storage.ExecutionPublisher
	store      storage.ExecutionStore
	fallback   string
	logger     *logrus.Logger
	closers    []io.Closer

	newID func() string
	now   func() time.Time
}

func New(cfg Config) (*Engine, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger client is required")
	}
	if cfg.Deriver == nil {
		return nil, fmt.Errorf("program deriver is required")
	}
	if cfg.Protocol == nil {
		return nil, fmt.Errorf("protocol is required")
	}
	if cfg.ValidatorAppID == 0 {
		return nil, fmt.Errorf("validator app id is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = constants.ErrorFallbackMessage
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	excessReader := excess.NewLedgerReader(cfg.Ledger)
	return &Engine{
		ledger:     cfg.Ledger,
		deriver:    cfg.Deriver,
		signer:     cfg.Signer,
		protocol:   cfg.Protocol,
		appID:      cfg.ValidatorAppID,
		poll:       cfg.PollInterval,
		risk:       NewRiskManager(cfg.Risk, cfg.Halts),
		reader:     pool.NewReader(cfg.Ledger, cfg.Logger),
		excess:     excessReader,
		reconciler: excess.NewReconciler(excessReader, cfg.Logger),
		assets:     cfg.Assets,
		publisher:  cfg.Publisher,
		store:      cfg.Store,
		fallback:   cfg.FallbackMessage,
		logger:     cfg.Logger,
		closers:    cfg.Closers,
		newID:      uuid.NewString,
		now:        time.Now,
	}, nil
}

func (e *Engine) Protocol() Protocol            { return e.protocol }
func (e *Engine) ValidatorAppID() uint64        { return e.appID }
func (e *Engine) Risk() *RiskManager            { return e.risk }
func (e *Engine) Signer() txgroup.Signer        { return e.signer }
func (e *Engine) Logger() *logrus.Logger        { return e.logger }
func (e *Engine) Store() storage.ExecutionStore { return e.store }

// Close releases the store and any other owned connections.
func (e *Engine) Close() error {
	var errs []error
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PoolFor derives the identity of a pair's pool without reading the ledger.
func (e *Engine) PoolFor(pair Pair) (pool.Pool, error) {
	if err := pair.Validate(); err != nil {
		return pool.Pool{}, err
	}
	a1, a2 := pair.Ordered()
	prog, err := e.deriver.Derive(a1, a2, e.appID)
	if err != nil {
		return pool.Pool{}, fmt.Errorf("derive pool account: %w", err)
	}
	return pool.Pool{
		Asset1ID:       a1,
		Asset2ID:       a2,
		Address:        prog.Address().String(),
		ValidatorAppID: e.appID,
		Version:        e.protocol.Version(),
	}, nil
}

// FetchPool reads a pair's pool status and reserves.
func (e *Engine) FetchPool(ctx context.Context, pair Pair) (*pool.State, error) {
	p, err := e.PoolFor(pair)
	if err != nil {
		return nil, err
	}
	st, err := e.reader.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	st.Pool.TotalFeeShare = e.protocol.FeeShare(&st.Pool)
	return st, nil
}

func (e *Engine) QuoteSwap(ctx context.Context, req SwapRequest) (*amm.SwapQuote, error) {
	_, q, err := e.quoteSwap(ctx, req)
	return q, err
}

func (e *Engine) quoteSwap(ctx context.Context, req SwapRequest) (*pool.State, *amm.SwapQuote, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	st, err := e.FetchPool(ctx, req.Pool)
	if err != nil {
		return nil, nil, err
	}
	q, err := e.protocol.QuoteSwap(st, req)
	if err != nil {
		return nil, nil, err
	}
	return st, q, nil
}

func (e *Engine) QuoteAddLiquidity(ctx context.Context, req AddLiquidityRequest) (*amm.AddLiquidityQuote, error) {
	_, q, err := e.quoteAddLiquidity(ctx, req)
	return q, err
}

func (e *Engine) quoteAddLiquidity(ctx context.Context, req AddLiquidityRequest) (*pool.State, *amm.AddLiquidityQuote, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	st, err := e.FetchPool(ctx, req.Pool)
	if err != nil {
		return nil, nil, err
	}
	q, err := e.protocol.QuoteAddLiquidity(st, req)
	if err != nil {
		return nil, nil, err
	}
	return st, q, nil
}

func (e *Engine) QuoteRemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest) (*amm.RemoveLiquidityQuote, error) {
	_, q, err := e.quoteRemoveLiquidity(ctx, req)
	return q, err
}

func (e *Engine) quoteRemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest) (*pool.State, *amm.RemoveLiquidityQuote, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	st, err := e.FetchPool(ctx, req.Pool)
	if err != nil {
		return nil, nil, err
	}
	q, err := e.protocol.QuoteRemoveLiquidity(st, req)
	if err != nil {
		return nil, nil, err
	}
	return st, q, nil
}

// ExcessAmounts lists the account's unredeemed excess across all pools of
// the validator app. An empty account means the engine's signer.
func (e *Engine) ExcessAmounts(ctx context.Context, account string) ([]excess.Entry, error) {
	if account == "" {
		if e.signer == nil {
			return nil, ammerr.New(ammerr.KindNoSigner, "no account given and no signer configured")
		}
		account = e.signer.Address().String()
	}
	return e.excess.List(ctx, account, e.appID)
}

// OptInPlan lists what an account must opt into before using a pool.
type OptInPlan struct {
	Account string `json:"account"`
	// AppID is set when the validator app opt-in is missing.
	AppID  uint64   `json:"app_id,omitempty"`
	Assets []uint64 `json:"assets,omitempty"`
}

func (p *OptInPlan) Empty() bool { return p.AppID == 0 && len(p.Assets) == 0 }

// RequiredOptIns reports the validator app and asset opt-ins account lacks
// for trading and providing liquidity in a pool.
func (e *Engine) RequiredOptIns(ctx context.Context, account string, pair Pair) (*OptInPlan, error) {
	if account == "" {
		if e.signer == nil {
			return nil, ammerr.New(ammerr.KindNoSigner, "no account given and no signer configured")
		}
		account = e.signer.Address().String()
	}
	st, err := e.FetchPool(ctx, pair)
	if err != nil {
		return nil, err
	}
	acct, err := e.ledger.AccountInformation(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("read account: %w", err)
	}

	plan := &OptInPlan{Account: account}
	if _, ok := acct.LocalState(e.appID); !ok {
		plan.AppID = e.appID
	}
	for _, id := range []uint64{st.Pool.Asset1ID, st.Pool.Asset2ID, st.Pool.PoolTokenID} {
		if id != 0 && !acct.OptedIn(id) {
			plan.Assets = append(plan.Assets, id)
		}
	}
	return plan, nil
}
