package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-shop-orders/internal/orders")

// DefaultNotifyTimeout bounds the post-commit notification so a stalled
// broker cannot hold CreateOrder open.
const DefaultNotifyTimeout = 2 * time.Second

type ServiceDeps struct {
	Store         Store
	Notifier      Notifier // optional
	Logger        *zap.Logger
	Clock         func() time.Time
	NewID         func() string
	NotifyTimeout time.Duration
}

// Service is the fulfillment core: cart consolidation, the order transaction
// coordinator, the status state machine and review crediting. It holds no
// in-process locks; all consistency comes from the Store.
type Service struct {
	store         Store
	notifier      Notifier
	log           *zap.Logger
	now           func() time.Time
	newID         func() string
	notifyTimeout time.Duration
}

func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("orders service: store is required")
	}
	s := &Service{
		store:         deps.Store,
		notifier:      deps.Notifier,
		log:           deps.Logger,
		now:           deps.Clock,
		newID:         deps.NewID,
		notifyTimeout: deps.NotifyTimeout,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = DefaultNotifyTimeout
	}
	return s, nil
}

type CreateOrderInput struct {
	UserID           string
	CartLineIDs      []string
	Payment          Payment
	Delivery         DeliveryInfo
	ShippingFeeCents int
}

func (in CreateOrderInput) validate() error {
	switch {
	case strings.TrimSpace(in.UserID) == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	case len(in.CartLineIDs) == 0:
		return fmt.Errorf("%w: at least one cart line is required", ErrInvalidInput)
	case strings.TrimSpace(in.Payment.Method) == "":
		return fmt.Errorf("%w: payment method is required", ErrInvalidInput)
	case in.ShippingFeeCents < 0:
		return fmt.Errorf("%w: shipping fee must not be negative", ErrInvalidInput)
	}
	return nil
}

// CreateOrder turns the given cart lines into one order. Cart deletion, stock
// reservation and the order insert share a transaction; any failure leaves
// carts, inventory and orders untouched.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (Order, error) {
	if err := in.validate(); err != nil {
		return Order{}, err
	}

	ctx, span := tracer.Start(ctx, "orders.CreateOrder", trace.WithAttributes(
		attribute.String("user.id", in.UserID),
		attribute.Int("order.cart_lines", len(in.CartLineIDs)),
		attribute.String("payment.method", in.Payment.Method),
	))
	defer span.End()

	var (
		order    Order
		products []Product
	)
	err := s.store.InTx(ctx, func(ctx context.Context, r Repositories) error {
		products = products[:0]
		lines := make([]OrderLine, 0, len(in.CartLineIDs))
		total := 0

		for _, id := range in.CartLineIDs {
			cart, err := r.Carts().FindByID(ctx, id, in.UserID)
			if err != nil {
				return err
			}
			// Reads inside the transaction see reservations already made by
			// earlier lines, so a repeated product is checked cumulatively.
			product, err := r.Inventory().Get(ctx, cart.ProductID)
			if err != nil {
				return err
			}
			if cart.Quantity > product.Quantity {
				return &StockError{ProductID: product.ID, Required: cart.Quantity, Available: product.Quantity}
			}
			if err := r.Inventory().Reserve(ctx, product.ID, cart.Quantity); err != nil {
				return err
			}
			if err := r.Carts().Delete(ctx, cart.ID, in.UserID); err != nil {
				return err
			}

			total += product.PriceCents * cart.Quantity
			lines = append(lines, OrderLine{
				ProductID:      product.ID,
				Quantity:       cart.Quantity,
				UnitPriceCents: product.PriceCents,
			})
			products = append(products, product)
		}

		status := StatusPending
		if in.Payment.IsCOD() {
			status = StatusConfirmed
		}
		now := s.now()
		order = Order{
			ID:               s.newID(),
			UserID:           in.UserID,
			Lines:            lines,
			Payment:          in.Payment,
			Delivery:         in.Delivery,
			ShippingFeeCents: in.ShippingFeeCents,
			TotalCents:       total + in.ShippingFeeCents,
			Status:           status,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return r.Orders().Insert(ctx, order)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
		s.log.Info("create order rejected",
			zap.String("user_id", in.UserID),
			zap.Strings("cart_line_ids", in.CartLineIDs),
			zap.Error(err),
		)
		return Order{}, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("order.total_cents", order.TotalCents),
		attribute.String("order.status", string(order.Status)),
	)
	s.log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int("total_cents", order.TotalCents),
		zap.String("status", string(order.Status)),
	)

	s.notifyCreated(ctx, order, products, in.UserID)
	return order, nil
}

func (s *Service) notifyCreated(ctx context.Context, o Order, products []Product, userID string) {
	if s.notifier == nil {
		return
	}
	// The order is committed; a caller hanging up must not drop the event,
	// but neither may a stuck publisher block the response.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.notifier.NotifyOrderCreated(nctx, o, products, userID); err != nil {
		s.log.Warn("order notification failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// UpdateStatus moves an order forward along the status sequence.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status) (Order, error) {
	ctx, span := tracer.Start(ctx, "orders.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.target_status", string(to)),
	))
	defer span.End()

	var updated Order
	err := s.store.InTx(ctx, func(ctx context.Context, r Repositories) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		updated, err = s.transition(ctx, r, o, to)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status update failed")
		return Order{}, err
	}
	return updated, nil
}

// CancelOrder cancels a caller-owned order when the cancellation policy allows it.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID string) (Order, error) {
	ctx, span := tracer.Start(ctx, "orders.CancelOrder", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("user.id", userID),
	))
	defer span.End()

	var updated Order
	err := s.store.InTx(ctx, func(ctx context.Context, r Repositories) error {
		o, err := r.Orders().FindByUserAndID(ctx, orderID, userID)
		if err != nil {
			return err
		}
		if err := CheckCancellable(o); err != nil {
			return err
		}
		updated, err = s.transition(ctx, r, o, StatusCancelled)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return Order{}, err
	}
	s.log.Info("order cancelled", zap.String("order_id", orderID), zap.String("user_id", userID))
	return updated, nil
}

// RecordPayment stores the gateway transaction id and confirms the order.
func (s *Service) RecordPayment(ctx context.Context, orderID, transactionID string) (Order, error) {
	if strings.TrimSpace(transactionID) == "" {
		return Order{}, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	var updated Order
	err := s.store.InTx(ctx, func(ctx context.Context, r Repositories) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := checkTransition(o.Status, StatusConfirmed); err != nil {
			return err
		}
		if err := r.Orders().SetPaymentTransaction(ctx, o.ID, transactionID); err != nil {
			return err
		}
		o.Payment.TransactionID = transactionID
		updated, err = s.transition(ctx, r, o, StatusConfirmed)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	s.log.Info("payment recorded", zap.String("order_id", orderID), zap.String("transaction_id", transactionID))
	return updated, nil
}

func (s *Service) transition(ctx context.Context, r Repositories, o Order, to Status) (Order, error) {
	if err := checkTransition(o.Status, to); err != nil {
		return Order{}, err
	}
	if err := r.Orders().UpdateStatus(ctx, o.ID, o.Status, to); err != nil {
		return Order{}, err
	}
	s.log.Debug("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(o.Status)),
		zap.String("to", string(to)),
	)
	o.Status = to
	o.UpdatedAt = s.now()
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (Order, error) {
	return s.store.Orders().FindByUserAndID(ctx, orderID, userID)
}

func (s *Service) ListOrders(ctx context.Context, userID string, status Status) ([]Order, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.store.Orders().ListByUser(ctx, userID, status)
}

// ListAllOrders is the operator view across every user, optionally filtered
// by status.
func (s *Service) ListAllOrders(ctx context.Context, status Status) ([]Order, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.store.Orders().List(ctx, status)
}

func (s *Service) GetProduct(ctx context.Context, productID string) (Product, error) {
	return s.store.Inventory().Get(ctx, productID)
}
