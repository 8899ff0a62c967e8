package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/order-stock/internal/core/domain"
	"github.com/rl1809/order-stock/internal/observability"
	"github.com/rl1809/order-stock/internal/port"
)

const tracerName = "github.com/rl1809/order-stock/internal/core/service"

// OrderService places single and bulk orders against shared stock. Every
// call locks the products it touches in ascending id order, works on an
// in-memory snapshot and persists only when the whole unit succeeded.
type OrderService struct {
	locker    port.Locker
	products  port.ProductRepository
	orders    port.OrderRepository
	parser    port.OrderParser
	publisher port.EventPublisher

	log     zerolog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*OrderService)

func WithLogger(log zerolog.Logger) Option {
	return func(s *OrderService) { s.log = log }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *OrderService) { s.metrics = m }
}

func WithPublisher(p port.EventPublisher) Option {
	return func(s *OrderService) { s.publisher = p }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *OrderService) { s.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

func NewOrderService(
	locker port.Locker,
	products port.ProductRepository,
	orders port.OrderRepository,
	parser port.OrderParser,
	opts ...Option,
) *OrderService {
	s := &OrderService{
		locker:   locker,
		products: products,
		orders:   orders,
		parser:   parser,
		log:      zerolog.Nop(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSingleOrder places one order. Any failure leaves stock exactly as it
// was before the call.
func (s *OrderService) CreateSingleOrder(ctx context.Context, cmd domain.OrderCommand) (result *SingleOrderResult, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateSingleOrder",
		trace.WithAttributes(attribute.Int("order.items", len(cmd.Items))))
	defer func() {
		s.metrics.ObserveOrders(observability.FlowSingle, outcomeOf(err), 1)
		endSpan(span, err)
	}()

	if len(cmd.Items) == 0 {
		return nil, domain.ErrInvalidOrder
	}
	if err := checkDuplicateProducts(cmd); err != nil {
		return nil, err
	}

	execCtx := newExecutionContext(sortedProductIDs(cmd))
	defer s.releaseAll(ctx, execCtx)

	if err := s.acquireAll(ctx, execCtx); err != nil {
		return nil, err
	}

	order, err := s.processSingleOrder(ctx, cmd, execCtx)
	if err != nil {
		if domain.IsBusinessError(err) {
			s.log.Warn().Err(err).Str("customer", cmd.CustomerName).Msg("order rejected")
		} else {
			s.log.Error().Err(err).Str("customer", cmd.CustomerName).Msg("failed to place order")
		}
		return nil, err
	}

	s.log.Info().
		Int64("order_id", order.ID).
		Str("customer", order.CustomerName).
		Int("items", len(order.Items)).
		Msg("order placed")

	s.publish(ctx, []domain.Order{order})

	res := newSingleOrderResult(order)
	return &res, nil
}

func (s *OrderService) processSingleOrder(ctx context.Context, cmd domain.OrderCommand, execCtx *executionContext) (domain.Order, error) {
	products, err := s.loadSnapshot(ctx, execCtx.productIDs)
	if err != nil {
		return domain.Order{}, err
	}
	if len(products) < len(execCtx.productIDs) {
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrProductNotFound, missingIDs(execCtx.productIDs, products))
	}

	execCtx.backup(products)

	order, err := assembleOrder(cmd, products, s.now())
	if err == nil {
		err = execCtx.validateAndReduce(order.Items, products)
	}
	if err == nil {
		err = s.products.SaveAll(ctx, execCtx.mutated(products))
	}
	if err == nil {
		order, err = s.orders.Save(ctx, order)
	}
	if err != nil {
		s.rollback(ctx, observability.FlowSingle, execCtx, products)
		return domain.Order{}, err
	}

	return order, nil
}

// CreateBulkOrder parses an uploaded file and places every order in it as
// one batch.
func (s *OrderService) CreateBulkOrder(ctx context.Context, data []byte) (*BulkOrderResult, error) {
	return s.ProcessBulkOrders(ctx, s.parser.Parse(ctx, data))
}

// ProcessBulkOrders locks the products of all commands once, then places
// each order independently against the shared snapshot. A rejected order is
// reported in the result and does not affect its siblings; lock and
// persistence failures abort the whole batch.
func (s *OrderService) ProcessBulkOrders(ctx context.Context, cmds []domain.OrderCommand) (result *BulkOrderResult, err error) {
	if len(cmds) == 0 {
		return EmptyBulkOrderResult(), nil
	}

	ctx, span := s.tracer.Start(ctx, "OrderService.ProcessBulkOrders",
		trace.WithAttributes(attribute.Int("bulk.orders", len(cmds))))
	defer func() {
		if err != nil {
			s.metrics.ObserveOrders(observability.FlowBulk, outcomeOf(err), len(cmds))
		} else {
			s.metrics.ObserveOrders(observability.FlowBulk, observability.OutcomeSuccess, result.SuccessCount())
			s.metrics.ObserveOrders(observability.FlowBulk, observability.OutcomeRejected, result.FailureCount())
		}
		endSpan(span, err)
	}()
	s.metrics.ObserveBatchSize(len(cmds))

	// rejected before locking so that a malformed upload takes no locks
	for _, cmd := range cmds {
		if err := checkDuplicateProducts(cmd); err != nil {
			return nil, fmt.Errorf("order of %s: %w", cmd.CustomerName, err)
		}
	}

	execCtx := newExecutionContext(sortedProductIDs(cmds...))
	defer s.releaseAll(ctx, execCtx)

	if err := s.acquireAll(ctx, execCtx); err != nil {
		return nil, err
	}

	return s.processBulkOrders(ctx, cmds, execCtx)
}

func (s *OrderService) processBulkOrders(ctx context.Context, cmds []domain.OrderCommand, execCtx *executionContext) (*BulkOrderResult, error) {
	products, err := s.loadSnapshot(ctx, execCtx.productIDs)
	if err != nil {
		return nil, err
	}

	execCtx.backup(products)

	placed := make([]domain.Order, 0, len(cmds))
	failed := make([]FailedOrderResult, 0)
	orderedAt := s.now()

	for _, cmd := range cmds {
		order, err := assembleOrder(cmd, products, orderedAt)
		if err == nil {
			err = execCtx.validateAndReduce(order.Items, products)
		}
		if err != nil {
			s.log.Debug().Err(err).Str("customer", cmd.CustomerName).Msg("bulk order rejected")
			failed = append(failed, FailedOrderResult{
				CustomerName:    cmd.CustomerName,
				CustomerAddress: cmd.CustomerAddress,
				Reason:          err.Error(),
			})
			continue
		}
		placed = append(placed, order)
	}

	if len(placed) == 0 {
		s.log.Info().Int("total", len(cmds)).Msg("no order in bulk upload succeeded")
		return newBulkOrderResult(nil, failed), nil
	}

	saved, err := s.commitBulk(ctx, execCtx, products, placed)
	if err != nil {
		s.rollback(ctx, observability.FlowBulk, execCtx, products)
		return nil, err
	}

	s.log.Info().
		Int("succeeded", len(saved)).
		Int("failed", len(failed)).
		Int("total", len(cmds)).
		Msg("bulk upload processed")

	s.publish(ctx, saved)

	return newBulkOrderResult(saved, failed), nil
}

func (s *OrderService) commitBulk(
	ctx context.Context,
	execCtx *executionContext,
	products map[int64]*domain.Product,
	orders []domain.Order,
) ([]domain.Order, error) {
	if err := s.products.SaveAll(ctx, execCtx.mutated(products)); err != nil {
		return nil, fmt.Errorf("save products: %w", err)
	}

	saved, err := s.orders.SaveAll(ctx, orders)
	if err != nil {
		return nil, fmt.Errorf("save orders: %w", err)
	}
	return saved, nil
}

// acquireAll takes the product locks in ascending id order. On failure the
// locks already taken stay recorded in execCtx for releaseAll.
func (s *OrderService) acquireAll(ctx context.Context, execCtx *executionContext) error {
	start := time.Now()
	for _, id := range execCtx.productIDs {
		key := domain.ProductLockKey(id)
		token, err := s.locker.Acquire(ctx, key)
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		execCtx.lockAcquired(id, token)
		s.log.Debug().Int64("product_id", id).Msg("lock acquired")
	}
	s.metrics.ObserveLockWait(time.Since(start))
	return nil
}

// releaseAll frees the acquired locks in reverse order. A failed release is
// logged and does not stop the remaining ones.
func (s *OrderService) releaseAll(ctx context.Context, execCtx *executionContext) {
	ctx = context.WithoutCancel(ctx)
	for i := len(execCtx.acquired) - 1; i >= 0; i-- {
		held := execCtx.acquired[i]
		id := held.productID
		if err := s.locker.Release(ctx, domain.ProductLockKey(id), held.token); err != nil {
			s.log.Error().Err(err).Int64("product_id", id).Msg("failed to release lock")
			continue
		}
		s.log.Debug().Int64("product_id", id).Msg("lock released")
	}
}

// rollback restores the snapshot and writes the restored quantities back,
// since a reduction may already have been persisted before the failure.
func (s *OrderService) rollback(ctx context.Context, flow string, execCtx *executionContext, products map[int64]*domain.Product) {
	dirty := execCtx.mutated(products)
	execCtx.restore(products)
	if len(dirty) == 0 {
		return
	}

	s.metrics.IncRollback(flow)

	restored := make([]domain.Product, 0, len(dirty))
	for _, p := range dirty {
		restored = append(restored, *products[p.ID])
	}
	if err := s.products.SaveAll(context.WithoutCancel(ctx), restored); err != nil {
		s.log.Error().Err(err).Int("products", len(restored)).Msg("CRITICAL: failed to persist restored stock")
		return
	}
	s.log.Warn().Int("products", len(restored)).Msg("stock restored after failure")
}

func (s *OrderService) publish(ctx context.Context, orders []domain.Order) {
	if s.publisher == nil || len(orders) == 0 {
		return
	}
	if err := s.publisher.PublishOrdersPlaced(ctx, orders); err != nil {
		s.log.Warn().Err(err).Int("orders", len(orders)).Msg("failed to publish order events")
	}
}

func missingIDs(ids []int64, found map[int64]*domain.Product) []int64 {
	missing := make([]int64, 0)
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case domain.IsBusinessError(err):
		return observability.OutcomeRejected
	default:
		return observability.OutcomeError
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
