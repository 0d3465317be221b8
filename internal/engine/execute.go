package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-engine/internal/algod"
	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/excess"
	"github.com/aman-zulfiqar/amm-engine/internal/models"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
	"github.com/aman-zulfiqar/amm-engine/internal/txgroup"
)

const publishTimeout = 5 * time.Second

// State is the lifecycle position of one execution.
type State string

const (
	StateQuoted    State = "QUOTED"
	StateGrouped   State = "GROUPED"
	StateSigned    State = "SIGNED"
	StateSubmitted State = "SUBMITTED"
	StateConfirmed State = "CONFIRMED"
	StateFailed    State = "FAILED"
)

// Output is one asset the initiator receives. Nominal is what the group
// transfers; Excess is the residual the pool credited to the account during
// the operation, redeemable later.
type Output struct {
	AssetID uint64 `json:"asset_id"`
	Quoted  uint64 `json:"quoted"`
	Nominal uint64 `json:"nominal"`
	Excess  uint64 `json:"excess"`
	Total   uint64 `json:"total"`
}

type ExecutionResult struct {
	ExecutionID string            `json:"execution_id"`
	Operation   Operation         `json:"operation"`
	State       State             `json:"state"`
	Pool        string            `json:"pool,omitempty"`
	Round       uint64            `json:"round,omitempty"`
	GroupID     string            `json:"group_id,omitempty"`
	TxIDs       []string          `json:"tx_ids,omitempty"`
	Fees        uint64            `json:"fees"`
	Inputs      []amm.AssetAmount `json:"inputs,omitempty"`
	Outputs     []Output          `json:"outputs,omitempty"`
	Excess      map[uint64]uint64 `json:"excess,omitempty"`
	// ExcessUnknown is set when the group confirmed but the excess could
	// not be read afterwards. Outputs then carry no excess; check the
	// account before redeeming.
	ExcessUnknown bool          `json:"excess_unknown,omitempty"`
	Quote         any           `json:"quote,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Output returns the output for one asset, if any.
func (r *ExecutionResult) Output(assetID uint64) (Output, bool) {
	for _, o := range r.Outputs {
		if o.AssetID == assetID {
			return o, true
		}
	}
	return Output{}, false
}

// job is one operation ready to run through execute.
type job struct {
	op    Operation
	state *pool.State // nil for groups not tied to a pool

	// guard inputs; guard is skipped when unset
	guard       bool
	slippageBps uint16
	impact      decimal.Decimal

	build func(params types.SuggestedParams) (*txgroup.Group, error)

	track   []uint64 // assets whose excess is reconciled
	inputs  []amm.AssetAmount
	outputs []Output // Quoted and Nominal filled in
	quote   any
}

type execution struct {
	result *ExecutionResult
	start  time.Time
	logger *logrus.Entry
}

func (x *execution) advance(s State) {
	x.result.State = s
	x.logger.WithField("state", s).Debug("execution state")
}

// execute runs guard, build, sign, submit, confirm and reconcile for one
// job. Failures are classified; the partial result is returned with them.
func (e *Engine) execute(ctx context.Context, j job) (*ExecutionResult, error) {
	x := &execution{
		result: &ExecutionResult{
			ExecutionID: e.newID(),
			Operation:   j.op,
			Inputs:      j.inputs,
			Quote:       j.quote,
		},
		start: e.now(),
	}
	if j.state != nil {
		x.result.Pool = j.state.Pool.Address
	}
	x.logger = e.logger.WithFields(logrus.Fields{
		"execution": x.result.ExecutionID,
		"operation": j.op,
		"pool":      x.result.Pool,
	})
	x.advance(StateQuoted)

	if e.signer == nil {
		return e.fail(ctx, x, j, ammerr.New(ammerr.KindNoSigner, "engine has no signer configured"))
	}

	// 1. Guard
	if j.guard {
		check, err := e.risk.Check(ctx, j.state.Pool.Address, j.slippageBps, j.impact)
		if err != nil {
			return e.fail(ctx, x, j, err)
		}
		if err := check.Err(); err != nil {
			if check.Halted {
				j.state.Pool.Status = pool.StatusError
			}
			return e.fail(ctx, x, j, err)
		}
	}

	// 2. Build
	params, err := e.ledger.TransactionParams(ctx)
	if err != nil {
		return e.fail(ctx, x, j, fmt.Errorf("fetch transaction params: %w", err))
	}
	g, err := j.build(params.Suggested())
	if err != nil {
		return e.fail(ctx, x, j, err)
	}
	x.result.GroupID = g.IDString()
	x.result.TxIDs = g.TxIDs()
	x.result.Fees = g.TotalFees()
	x.advance(StateGrouped)

	// 3. Sign
	var program txgroup.ProgramAccount
	if g.ProgramSigned() {
		program, err = e.deriver.Derive(j.state.Pool.Asset1ID, j.state.Pool.Asset2ID, e.appID)
		if err != nil {
			return e.fail(ctx, x, j, fmt.Errorf("derive pool account: %w", err))
		}
	}
	if err := g.Sign(e.signer, program); err != nil {
		return e.fail(ctx, x, j, err)
	}
	blob, err := g.Encode()
	if err != nil {
		return e.fail(ctx, x, j, err)
	}
	x.advance(StateSigned)

	// 4. Submit and confirm, bracketed by excess reads
	submit := func(ctx context.Context) error {
		txID, err := e.ledger.SendRawTransaction(ctx, blob)
		if err != nil {
			return submitError(err)
		}
		x.advance(StateSubmitted)
		x.logger.WithField("tx_id", txID).Info("group submitted")

		round, err := e.waitForConfirmation(ctx, txID)
		if err != nil {
			return err
		}
		x.result.Round = round
		return nil
	}

	var gained map[uint64]uint64
	if len(j.track) > 0 && j.state != nil {
		gained, err = e.reconciler.Track(ctx, e.signer.Address().String(), &j.state.Pool, j.track, submit)
		if errors.Is(err, excess.ErrAfterRead) {
			// confirmed on the ledger; reporting a failure would invite a resubmit
			x.result.ExcessUnknown = true
			x.logger.WithError(err).WithField("round", x.result.Round).Warn("group confirmed but excess could not be read")
			err = nil
		}
	} else {
		err = submit(ctx)
	}
	if err != nil {
		return e.fail(ctx, x, j, err)
	}

	// 5. Reconcile
	x.result.Outputs = attribute(j.outputs, gained)
	for id, v := range gained {
		if v == 0 {
			continue
		}
		if x.result.Excess == nil {
			x.result.Excess = make(map[uint64]uint64, len(gained))
		}
		x.result.Excess[id] = v
	}
	x.result.Duration = time.Since(x.start)
	x.advance(StateConfirmed)
	x.logger.WithFields(logrus.Fields{
		"round": x.result.Round,
		"fees":  x.result.Fees,
	}).Info("execution confirmed")

	e.record(ctx, x.result, j, nil)
	return x.result, nil
}

// attribute adds each asset's excess gain to its output. Gains on assets
// without an output (such as an unspent fixed-output input) become outputs
// of their own.
func attribute(outputs []Output, gained map[uint64]uint64) []Output {
	out := make([]Output, 0, len(outputs)+len(gained))
	seen := make(map[uint64]bool, len(outputs))
	for _, o := range outputs {
		o.Excess = gained[o.AssetID]
		o.Total = o.Nominal + o.Excess
		seen[o.AssetID] = true
		out = append(out, o)
	}
	for _, id := range sortedKeys(gained) {
		if seen[id] || gained[id] == 0 {
			continue
		}
		out = append(out, Output{AssetID: id, Excess: gained[id], Total: gained[id]})
	}
	return out
}

func (e *Engine) fail(ctx context.Context, x *execution, j job, err error) (*ExecutionResult, error) {
	classified := ammerr.Classify(err, e.fallback)
	x.result.Duration = time.Since(x.start)
	x.advance(StateFailed)
	x.logger.WithError(err).WithField("kind", classified.Kind).Warn("execution failed")

	// Nothing reached the ledger before submission; only record attempts
	// that got that far.
	if x.result.GroupID != "" {
		e.record(ctx, x.result, j, classified)
	}
	return x.result, classified
}

// submitError marks node rejections of the group so their message is
// classified.
func submitError(err error) error {
	var apiErr *algod.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
		return &ammerr.Error{
			Kind:    ammerr.KindTransactionRejected,
			Message: "group rejected by node",
			Raw:     apiErr.Message,
			Cause:   err,
		}
	}
	return fmt.Errorf("submit group: %w", err)
}

// waitForConfirmation re-checks the transaction on a fixed delay until it is
// confirmed or the node reports a pool error. It never resubmits; a
// cancelled wait leaves the outcome unknown.
func (e *Engine) waitForConfirmation(ctx context.Context, txID string) (uint64, error) {
	for {
		pending, err := e.ledger.PendingTransactionInformation(ctx, txID)
		if err != nil {
			return 0, fmt.Errorf("check transaction %s: %w", txID, err)
		}
		if pending.PoolError != "" {
			return 0, &ammerr.Error{
				Kind:    ammerr.KindTransactionRejected,
				Message: fmt.Sprintf("transaction %s rejected", txID),
				Raw:     pending.PoolError,
			}
		}
		if pending.ConfirmedRound > 0 {
			return pending.ConfirmedRound, nil
		}

		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("transaction %s outcome unknown, check excess and balances before retrying: %w", txID, ctx.Err())
		case <-time.After(e.poll):
		}
	}
}

// record publishes and stores the execution. Both are best effort.
func (e *Engine) record(ctx context.Context, r *ExecutionResult, j job, failure *ammerr.Error) {
	if e.publisher == nil && e.store == nil {
		return
	}
	ev := e.event(r, j, failure)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if e.publisher != nil {
		if err := e.publisher.PublishExecution(ctx, ev); err != nil {
			e.logger.WithError(err).WithField("execution", r.ExecutionID).Warn("failed to publish execution")
		}
	}
	if e.store != nil {
		if err := e.store.InsertExecution(ctx, ev); err != nil {
			e.logger.WithError(err).WithField("execution", r.ExecutionID).Warn("failed to store execution")
		}
	}
}

func (e *Engine) event(r *ExecutionResult, j job, failure *ammerr.Error) *models.ExecutionEvent {
	ev := &models.ExecutionEvent{
		ExecutionID:   r.ExecutionID,
		Timestamp:     e.now(),
		Operation:     string(r.Operation),
		Status:        models.StatusConfirmed,
		Pool:          r.Pool,
		Initiator:     e.signer.Address().String(),
		Round:         r.Round,
		GroupID:       r.GroupID,
		TxIDs:         r.TxIDs,
		Fees:          r.Fees,
		ExcessUnknown: r.ExcessUnknown,
	}
	if j.state != nil {
		ev.Asset1ID = j.state.Pool.Asset1ID
		ev.Asset2ID = j.state.Pool.Asset2ID
	}
	for _, in := range r.Inputs {
		ev.Inputs = append(ev.Inputs, models.AssetAmount{AssetID: in.AssetID, Amount: in.Amount})
	}
	for _, o := range r.Outputs {
		ev.Outputs = append(ev.Outputs, models.AssetAmount{AssetID: o.AssetID, Amount: o.Total})
	}
	for _, id := range sortedKeys(r.Excess) {
		ev.Excess = append(ev.Excess, models.AssetAmount{AssetID: id, Amount: r.Excess[id]})
	}
	if failure != nil {
		ev.Status = models.StatusFailed
		ev.ErrorKind = string(failure.Kind)
		ev.ErrorMessage = failure.Message
	}
	return ev
}
