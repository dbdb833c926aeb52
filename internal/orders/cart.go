package orders

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// AddToCart merges quantity into the caller's existing line for the product
// or creates a new one. Stock is not checked here; CreateOrder revalidates it.
func (s *Service) AddToCart(ctx context.Context, userID, productID string, qty int) (CartLine, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(productID) == "" {
		return CartLine{}, fmt.Errorf("%w: user and product are required", ErrInvalidInput)
	}
	if qty <= 0 {
		return CartLine{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if _, err := s.store.Inventory().Get(ctx, productID); err != nil {
		return CartLine{}, err
	}
	line, err := s.store.Carts().UpsertQuantity(ctx, userID, productID, qty)
	if err != nil {
		return CartLine{}, err
	}
	s.log.Debug("cart line upserted",
		zap.String("cart_line_id", line.ID),
		zap.String("user_id", userID),
		zap.Int("quantity", line.Quantity),
	)
	return line, nil
}

func (s *Service) UpdateCartQuantity(ctx context.Context, userID, cartLineID string, qty int) (CartLine, error) {
	if qty <= 0 {
		return CartLine{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	return s.store.Carts().SetQuantity(ctx, cartLineID, userID, qty)
}

func (s *Service) ListCart(ctx context.Context, userID string) ([]CartLine, error) {
	return s.store.Carts().ListByUser(ctx, userID)
}

func (s *Service) RemoveCartLine(ctx context.Context, userID, cartLineID string) error {
	return s.store.Carts().Delete(ctx, cartLineID, userID)
}
