package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gridLadder/internal/engine"
	"gridLadder/internal/ladder"
	"gridLadder/internal/model"
)

// EngineFactory instantiates a fresh, uninitialized engine from the
// deployment template.
type EngineFactory func() *engine.Engine

// Deployer creates engine instances and records them for discovery.
type Deployer struct {
	factory EngineFactory
	store   Store
	logger  *zap.Logger
	now     func() time.Time
}

// NewDeployer builds a deployer with its dependencies.
func NewDeployer(factory EngineFactory, store Store, logger *zap.Logger) *Deployer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deployer{
		factory: factory,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Deploy instantiates an engine, initializes it exactly once, and
// persists its creation record.
func (d *Deployer) Deploy(ctx context.Context, params ladder.Params, baseToken, quoteToken, owner common.Address) (*engine.Engine, model.Instance, error) {
	if d.factory == nil {
		return nil, model.Instance{}, fmt.Errorf("engine factory is nil")
	}
	if d.store == nil {
		return nil, model.Instance{}, fmt.Errorf("registry store is nil")
	}

	eng := d.factory()
	if err := eng.Initialize(ctx, params, baseToken, quoteToken, owner); err != nil {
		return nil, model.Instance{}, fmt.Errorf("initialize instance: %w", err)
	}

	instance := model.Instance{
		ID:         uuid.NewString(),
		Owner:      owner.Hex(),
		BaseToken:  baseToken.Hex(),
		QuoteToken: quoteToken.Hex(),
		CreatedAt:  d.now().UTC().Format(time.RFC3339Nano),
	}
	if err := d.store.InsertInstance(ctx, instance); err != nil {
		return nil, model.Instance{}, fmt.Errorf("record instance: %w", err)
	}

	d.logger.Info("instance deployed",
		zap.String("instance", instance.ID),
		zap.String("owner", instance.Owner),
		zap.String("base", instance.BaseToken),
		zap.String("quote", instance.QuoteToken),
	)
	return eng, instance, nil
}
