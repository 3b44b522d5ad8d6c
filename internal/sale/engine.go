// Package sale implements the launch state machine: setup, purchases, refund claims
// and success distribution.
//
// Status transitions are resolved lazily as the first step of every mutating call.
// Mutating calls on the same launch are serialized; different launches run in parallel.
package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"meme-presale/internal/domain"
	"meme-presale/internal/ledger"
	"meme-presale/internal/observability"
	"meme-presale/internal/storage"
)

// Default success distribution amounts in lamports.
const (
	DefaultPoolCreationFee uint64 = 400_000_000
	DefaultCreatorGain     uint64 = 500_000_000
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// AddressDeriver derives launch and mint addresses.
type AddressDeriver interface {
	LaunchAddress(creator string, index uint32) (string, error)
	MintAddress(seed uint64) (string, error)
}

// Publisher receives receipt events after they are committed.
type Publisher interface {
	Publish(ctx context.Context, ev *domain.ReceiptEvent) error
}

// Engine runs sale operations against stores and a ledger.
type Engine struct {
	// Stores
	launches storage.LaunchStore
	counters storage.CounterStore
	configs  storage.GlobalConfigStore
	receipts storage.ReceiptStore

	ledger     ledger.Ledger
	addresses  AddressDeriver
	clock      Clock
	logger     logrus.FieldLogger
	publishers []Publisher

	// Settlement parameters
	poolCreationFee uint64
	creatorGain     uint64
	mintSuffix      string

	locks *keyedMutex
}

// Options for creating Engine.
type Options struct {
	// Required stores
	LaunchStore       storage.LaunchStore
	CounterStore      storage.CounterStore
	GlobalConfigStore storage.GlobalConfigStore
	ReceiptStore      storage.ReceiptStore

	// Required collaborators
	Ledger    ledger.Ledger
	Addresses AddressDeriver

	// Optional
	Clock      Clock              // defaults to SystemClock
	Logger     logrus.FieldLogger // defaults to the logrus standard logger
	Publishers []Publisher

	PoolCreationFee *uint64 // defaults to DefaultPoolCreationFee
	CreatorGain     *uint64 // defaults to DefaultCreatorGain
	MintSuffix      string  // required lowercase mint suffix, empty accepts any mint
}

// New creates a new Engine.
func New(opts Options) (*Engine, error) {
	switch {
	case opts.LaunchStore == nil:
		return nil, errors.New("sale: launch store is required")
	case opts.CounterStore == nil:
		return nil, errors.New("sale: counter store is required")
	case opts.GlobalConfigStore == nil:
		return nil, errors.New("sale: global config store is required")
	case opts.ReceiptStore == nil:
		return nil, errors.New("sale: receipt store is required")
	case opts.Ledger == nil:
		return nil, errors.New("sale: ledger is required")
	case opts.Addresses == nil:
		return nil, errors.New("sale: address deriver is required")
	}

	e := &Engine{
		launches:        opts.LaunchStore,
		counters:        opts.CounterStore,
		configs:         opts.GlobalConfigStore,
		receipts:        opts.ReceiptStore,
		ledger:          opts.Ledger,
		addresses:       opts.Addresses,
		clock:           opts.Clock,
		logger:          opts.Logger,
		publishers:      opts.Publishers,
		poolCreationFee: DefaultPoolCreationFee,
		creatorGain:     DefaultCreatorGain,
		mintSuffix:      opts.MintSuffix,
		locks:           newKeyedMutex(),
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}
	if opts.PoolCreationFee != nil {
		e.poolCreationFee = *opts.PoolCreationFee
	}
	if opts.CreatorGain != nil {
		e.creatorGain = *opts.CreatorGain
	}
	return e, nil
}

// AddPublisher registers an additional receipt publisher. Not safe for use concurrently with operations.
func (e *Engine) AddPublisher(p Publisher) {
	e.publishers = append(e.publishers, p)
}

func (e *Engine) now() int64 {
	return e.clock.Now().Unix()
}

// load reads a launch, mapping storage.ErrNotFound to ErrLaunchNotFound.
func (e *Engine) load(ctx context.Context, key domain.LaunchKey) (*domain.Launch, error) {
	l, err := e.launches.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrLaunchNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load launch %s: %w", key, err)
	}
	return l, nil
}

// loadMutable reads a launch for a mutating call.
func (e *Engine) loadMutable(ctx context.Context, key domain.LaunchKey) (*domain.Launch, error) {
	l, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if l.Halted {
		return nil, fmt.Errorf("%w: %s", ErrLaunchHalted, key)
	}
	return l, nil
}

// globalConfig reads the global config, mapping storage.ErrNotFound to ErrConfigMissing.
func (e *Engine) globalConfig(ctx context.Context) (*domain.GlobalConfig, error) {
	cfg, err := e.configs.Get(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrConfigMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load global config: %w", err)
	}
	return cfg, nil
}

// poolState holds the derived launch pool balances.
type poolState struct {
	Sold     uint64 // token units sold and not returned
	Lamports uint64 // lamports held by the launch account
}

// pool reads the launch pool balances. A token pool above the sellable supply halts the launch.
func (e *Engine) pool(ctx context.Context, l *domain.Launch) (poolState, error) {
	sold, lamports, err := e.readPool(ctx, l)
	if errors.Is(err, ErrInconsistentState) {
		return poolState{}, e.halt(ctx, l, err)
	}
	if err != nil {
		return poolState{}, err
	}
	return poolState{Sold: sold, Lamports: lamports}, nil
}

// referenceOrNew returns ref, or a fresh random reference when ref is empty.
func referenceOrNew(ref string) string {
	if ref != "" {
		return ref
	}
	return uuid.NewString()
}

// priorPurchase returns the purchase already recorded under ref, or nil.
// A ref reused with a different buyer or deposit fails with ErrDuplicateReference.
func (e *Engine) priorPurchase(ctx context.Context, key domain.LaunchKey, req BuyRequest) (*domain.PurchaseReceipt, error) {
	if req.Reference == "" {
		return nil, nil
	}
	prior, err := e.receipts.GetPurchaseByReference(ctx, key, req.Reference)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check reference: %w", err)
	}
	if prior.Buyer != req.Buyer || prior.Deposit != req.Deposit {
		return nil, fmt.Errorf("%w: %q on %s", ErrDuplicateReference, req.Reference, key)
	}
	return prior, nil
}

// priorClaim returns the claim already recorded under ref, or nil.
// A ref reused with a different claimer or unit count fails with ErrDuplicateReference.
func (e *Engine) priorClaim(ctx context.Context, key domain.LaunchKey, req ClaimRequest) (*domain.ClaimReceipt, error) {
	if req.Reference == "" {
		return nil, nil
	}
	prior, err := e.receipts.GetClaimByReference(ctx, key, req.Reference)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check reference: %w", err)
	}
	if prior.Claimer != req.Claimer || prior.TokenUnits != req.Units {
		return nil, fmt.Errorf("%w: %q on %s", ErrDuplicateReference, req.Reference, key)
	}
	return prior, nil
}

// publish hands a committed event to every publisher. Failures are logged and counted
// because the ledger movement is already committed.
func (e *Engine) publish(ctx context.Context, ev *domain.ReceiptEvent) {
	for _, p := range e.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			observability.RecordPublishError(string(ev.Kind))
			e.logger.WithFields(logrus.Fields{
				"launch": ev.Launch,
				"kind":   ev.Kind,
			}).Warnf("publish receipt: %v", err)
		}
	}
}

// observe records operation latency and error class.
func (e *Engine) observe(operation string, start time.Time, err error) {
	observability.RecordOperation(operation, time.Since(start).Seconds(), string(Classify(err)))
}
