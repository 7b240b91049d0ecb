package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	coreerrors "gemfarm/core/errors"
	"gemfarm/core/events"
	"gemfarm/core/state"
	"gemfarm/core/types"
	"gemfarm/crypto"
	"gemfarm/native/bank"
	nativecommon "gemfarm/native/common"
	"gemfarm/native/farm"
	"gemfarm/observability"
	"gemfarm/observability/metrics"
	"gemfarm/storage"
)

// EventSink receives committed events, for example a durable event log.
type EventSink interface {
	Append(ctx context.Context, records []types.EventRecord) error
}

type eventWithPayload interface {
	Event() *types.Event
}

// eventBuffer holds events raised during an operation until it commits.
type eventBuffer struct {
	pending []events.Event
}

func (b *eventBuffer) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

func (b *eventBuffer) drain() []events.Event {
	out := b.pending
	b.pending = nil
	return out
}

// Ledger serialises bank and farm operations over a single state manager.
// Every operation either commits all of its writes and events or none.
type Ledger struct {
	mu     sync.Mutex
	state  *state.Manager
	bank   *bank.Engine
	farm   *farm.Engine
	buffer *eventBuffer
	stream *EventStream
	sinks  []EventSink
	logger *slog.Logger
	now    func() time.Time
	pauses nativecommon.PauseView

	// metadataAuthority may record NFT creator lists. Zero disables recording.
	metadataAuthority crypto.Address

	// deliverMu keeps event delivery in commit order once mu is released.
	deliverMu sync.Mutex
}

// Option customises a Ledger.
type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the wall clock used for reward accrual and event
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func WithPauses(p nativecommon.PauseView) Option {
	return func(l *Ledger) { l.pauses = p }
}

// WithMetadataAuthority names the signer allowed to record NFT creator lists.
func WithMetadataAuthority(authority crypto.Address) Option {
	return func(l *Ledger) { l.metadataAuthority = authority }
}

// WithSink adds a destination for committed events.
func WithSink(sink EventSink) Option {
	return func(l *Ledger) {
		if sink != nil {
			l.sinks = append(l.sinks, sink)
		}
	}
}

// WithStream replaces the default in-memory event stream.
func WithStream(stream *EventStream) Option {
	return func(l *Ledger) {
		if stream != nil {
			l.stream = stream
		}
	}
}

// NewLedger wires the bank and farm engines over db.
func NewLedger(db storage.Database, opts ...Option) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: database required")
	}
	l := &Ledger{
		state:  state.NewManager(db),
		bank:   bank.NewEngine(),
		farm:   farm.NewEngine(),
		buffer: &eventBuffer{},
		stream: NewEventStream(0),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(slog.String("component", "ledger"))

	l.bank.SetState(l.state)
	l.bank.SetMetadataOracle(l.state)
	l.bank.SetEmitter(l.buffer)
	l.bank.SetPauses(l.pauses)

	l.farm.SetState(l.state)
	l.farm.SetBank(l.bank)
	l.farm.SetEmitter(l.buffer)
	l.farm.SetPauses(l.pauses)
	l.farm.SetNowFunc(func() int64 { return l.now().Unix() })
	return l, nil
}

// Stream exposes the live event feed.
func (l *Ledger) Stream() *EventStream { return l.stream }

// Tx is the handle an operation uses to reach the engines. It is only valid
// inside the callback it was passed to.
type Tx struct {
	ctx    context.Context
	ledger *Ledger
}

func (tx *Tx) Context() context.Context { return tx.ctx }

func (tx *Tx) State() *state.Manager { return tx.ledger.state }

func (tx *Tx) Bank() *bank.Engine { return tx.ledger.bank }

func (tx *Tx) Farm() *farm.Engine { return tx.ledger.farm }

// Now returns the ledger clock as unix seconds.
func (tx *Tx) Now() int64 { return tx.ledger.now().Unix() }

// Execute runs fn as one all-or-nothing operation named op. When fn fails the
// staged writes and buffered events are discarded.
func (l *Ledger) Execute(ctx context.Context, op string, fn func(tx *Tx) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	result, err := l.applyLocked(ctx, op, fn)

	outcome := "ok"
	if err != nil {
		outcome = string(coreerrors.Classify(err))
		l.logger.Warn("operation failed",
			slog.String("op", op),
			slog.String("kind", outcome),
			slog.String("error", err.Error()))
	}
	observability.Ledger().ObserveOperation(op, outcome, time.Since(start))
	if err != nil {
		return err
	}
	defer l.deliverMu.Unlock()
	l.deliver(ctx, result)
	return nil
}

// committed is what an operation hands to delivery once its writes are
// durable.
type committed struct {
	records []types.EventRecord
	farms   []*farm.Farm
}

// applyLocked runs apply under mu. On success deliverMu is held when it
// returns. A panic inside fn discards the staged writes and releases mu
// before it propagates.
func (l *Ledger) applyLocked(ctx context.Context, op string, fn func(tx *Tx) error) (committed, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			l.rollback()
			l.logger.Error("operation panicked", slog.String("op", op), slog.Any("panic", r))
			panic(r)
		}
	}()
	result, err := l.apply(ctx, op, fn)
	if err == nil {
		l.deliverMu.Lock()
	}
	return result, err
}

func (l *Ledger) apply(ctx context.Context, op string, fn func(tx *Tx) error) (committed, error) {
	if err := fn(&Tx{ctx: ctx, ledger: l}); err != nil {
		l.rollback()
		return committed{}, err
	}
	if err := l.state.Commit(); err != nil {
		l.rollback()
		return committed{}, fmt.Errorf("commit %s: %w", op, err)
	}
	pending := l.buffer.drain()
	records := make([]types.EventRecord, 0, len(pending))
	timestamp := l.now().Unix()
	for _, evt := range pending {
		payload, ok := evt.(eventWithPayload)
		if !ok {
			continue
		}
		data := payload.Event()
		if data == nil {
			continue
		}
		records = append(records, types.EventRecord{
			ID:         uuid.NewString(),
			Operation:  op,
			Type:       data.Type,
			Attributes: data.Attributes,
			Timestamp:  timestamp,
		})
	}
	// Sequence numbers are assigned under the ledger lock so they follow
	// commit order.
	l.stream.assign(records)
	return committed{records: records, farms: l.touchedFarms(records)}, nil
}

// touchedFarms snapshots the farms named by records for the gauges.
func (l *Ledger) touchedFarms(records []types.EventRecord) []*farm.Farm {
	seen := make(map[string]struct{})
	var out []*farm.Farm
	for _, record := range records {
		farmAttr := record.Attributes["farm"]
		if farmAttr == "" {
			continue
		}
		if _, ok := seen[farmAttr]; ok {
			continue
		}
		seen[farmAttr] = struct{}{}
		addr, err := crypto.DecodeAddress(farmAttr)
		if err != nil {
			continue
		}
		if f, err := l.farm.Farm(addr); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func (l *Ledger) rollback() {
	l.state.Discard()
	l.buffer.drain()
	observability.Ledger().RecordRollback()
}

func (l *Ledger) deliver(ctx context.Context, result committed) {
	records := result.records
	if len(records) == 0 {
		return
	}
	for _, sink := range l.sinks {
		if err := sink.Append(ctx, records); err != nil {
			observability.Events().RecordDrop("sink")
			l.logger.Error("event sink append failed",
				slog.Int("count", len(records)),
				slog.String("error", err.Error()))
		}
	}
	for i := l.stream.publish(records); i > 0; i-- {
		observability.Events().RecordDrop("stream")
	}
	for _, record := range records {
		observability.Events().RecordEvent(record.Type)
		if record.Type == events.TypeRewardsClaimed {
			recordClaim(record, "mintA", "amountA")
			recordClaim(record, "mintB", "amountB")
		}
	}
	for _, f := range result.farms {
		observeFarm(f)
	}
}

func recordClaim(record types.EventRecord, mintKey, amountKey string) {
	amount, ok := new(big.Int).SetString(record.Attributes[amountKey], 10)
	if !ok || amount.Sign() <= 0 {
		return
	}
	metrics.Farm().RecordClaim(record.Attributes["farm"], record.Attributes[mintKey])
}

func observeFarm(f *farm.Farm) {
	m := metrics.Farm()
	farmAttr := f.Address.String()
	m.ObserveStaking(farmAttr, f.StakedFarmerCount, f.GemsStaked, f.RarityPointsStaked)
	for _, pool := range []farm.RewardPool{f.RewardA, f.RewardB} {
		m.ObservePool(farmAttr, pool.Mint.String(),
			observability.BigToFloat(pool.Funds.TotalFunded),
			observability.BigToFloat(pool.Funds.TotalAccruedToStakers),
			observability.BigToFloat(pool.Funds.TotalRefunded),
			observability.BigToFloat(pool.Fixed.ReservedAmount))
	}
}

// Do runs fn through Execute and returns its result.
func Do[T any](ctx context.Context, l *Ledger, op string, fn func(tx *Tx) (T, error)) (T, error) {
	var out T
	err := l.Execute(ctx, op, func(tx *Tx) error {
		result, err := fn(tx)
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	return out, err
}

// Query runs a read-only function under the ledger lock. Any writes or events
// it stages are dropped.
func Query[T any](l *Ledger, fn func(tx *Tx) (T, error)) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.state.Discard()
	defer l.buffer.drain()
	return fn(&Tx{ctx: context.Background(), ledger: l})
}

// Mint credits newly issued tokens to owner. Operators use it to seed reward
// and fee balances.
func (l *Ledger) Mint(ctx context.Context, mint, owner crypto.Address, amount *big.Int) error {
	return l.Execute(ctx, "token.mint", func(tx *Tx) error {
		return tx.State().Mint(mint, owner, amount)
	})
}

// Balance returns the committed token balance of owner.
func (l *Ledger) Balance(mint, owner crypto.Address) (*big.Int, error) {
	return Query(l, func(tx *Tx) (*big.Int, error) { return tx.State().Balance(mint, owner) })
}
