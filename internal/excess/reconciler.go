package excess

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-engine/internal/pool"
)

// ErrAfterRead marks a Track whose operation succeeded but whose second
// excess read failed. The operation's effects stand; only the gain is unknown.
var ErrAfterRead = errors.New("excess after operation unknown")

// Reconciler attributes excess gained by an operation to that operation.
type Reconciler struct {
	reader Reader
	logger *logrus.Logger
}

func NewReconciler(reader Reader, logger *logrus.Logger) *Reconciler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reconciler{reader: reader, logger: logger}
}

// Track reads excess, runs op, then reads excess again. The reads strictly
// bracket op. It returns the per-asset gain for assetIDs.
//
// If op fails no after-read is made and op's error is returned as is. If the
// after-read fails the error wraps ErrAfterRead.
func (r *Reconciler) Track(ctx context.Context, account string, p *pool.Pool, assetIDs []uint64, op func(ctx context.Context) error) (map[uint64]uint64, error) {
	before, err := r.reader.Excess(ctx, account, p, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("excess before: %w", err)
	}

	if err := op(ctx); err != nil {
		return nil, err
	}

	after, err := r.reader.Excess(ctx, account, p, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAfterRead, err)
	}

	gained := make(map[uint64]uint64, len(assetIDs))
	for _, id := range assetIDs {
		gained[id] = Delta(before, after, id)
		if after.Get(id) < before.Get(id) {
			r.logger.WithFields(logrus.Fields{
				"account": account,
				"pool":    p.Address,
				"asset":   id,
				"before":  before.Get(id),
				"after":   after.Get(id),
			}).Debug("excess decreased during operation")
		}
	}
	return gained, nil
}
