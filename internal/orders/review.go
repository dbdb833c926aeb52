package orders

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	MinRating = 1
	MaxRating = 5
)

type ReviewInput struct {
	OrderID   string
	UserID    string
	ProductID string
	Comment   string
	Rating    int
}

type ReviewResult struct {
	OrderID       string  `json:"order_id"`
	ProductID     string  `json:"product_id"`
	OverallRating float64 `json:"overall_rating"`
}

// CreditReview grants the single review a delivered order line allows and
// folds it into the product rating. The line flag and the product review
// are written in one transaction.
func (s *Service) CreditReview(ctx context.Context, in ReviewInput) (ReviewResult, error) {
	if strings.TrimSpace(in.ProductID) == "" {
		return ReviewResult{}, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	if in.Rating < MinRating || in.Rating > MaxRating {
		return ReviewResult{}, fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidInput, MinRating, MaxRating)
	}

	ctx, span := tracer.Start(ctx, "orders.CreditReview", trace.WithAttributes(
		attribute.String("order.id", in.OrderID),
		attribute.String("product.id", in.ProductID),
	))
	defer span.End()

	var rating float64
	err := s.store.InTx(ctx, func(ctx context.Context, r Repositories) error {
		o, err := r.Orders().FindByUserAndID(ctx, in.OrderID, in.UserID)
		if err != nil {
			return err
		}
		if o.Status != StatusDelivered {
			return fmt.Errorf("%w: order %s is not delivered", ErrNotFound, o.ID)
		}

		line := -1
		for i, l := range o.Lines {
			if l.ProductID == in.ProductID && !l.IsReviewed {
				line = i
				break
			}
		}
		if line < 0 {
			return fmt.Errorf("%w: no unreviewed line for product %s in order %s", ErrAlreadyReviewed, in.ProductID, o.ID)
		}
		if err := r.Orders().MarkLineReviewed(ctx, o.ID, line); err != nil {
			return err
		}

		rating, err = r.Inventory().AppendReview(ctx, in.ProductID, Review{
			UserID:    in.UserID,
			Rating:    in.Rating,
			Comment:   in.Comment,
			CreatedAt: s.now(),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credit review failed")
		return ReviewResult{}, err
	}

	s.log.Info("review credited",
		zap.String("order_id", in.OrderID),
		zap.String("product_id", in.ProductID),
		zap.Float64("overall_rating", rating),
	)
	return ReviewResult{OrderID: in.OrderID, ProductID: in.ProductID, OverallRating: rating}, nil
}
