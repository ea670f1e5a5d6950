package service

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPromotion(f *fixture, canteenID int64, code string) *domain.Promotion {
	return &domain.Promotion{
		CanteenID:     canteenID,
		Name:          "Lunch deal",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(15),
		StartDate:     f.now,
		EndDate:       f.now.AddDate(0, 1, 0),
		Active:        true,
		Code:          code,
		CurrentUses:   7,
	}
}

func TestPromotionCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.promoSvc.Create(ctx, operatorID, newPromotion(f, 1, " LUNCH15 "))

	require.NoError(t, err)
	assert.Equal(t, "LUNCH15", created.Code)
	assert.Equal(t, 0, created.CurrentUses)
	assert.True(t, f.now.Equal(created.CreatedAt))

	list, err := f.promoSvc.List(ctx, adminID, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestPromotionCreate_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.promoSvc.Create(ctx, operatorID, newPromotion(f, 1, "DUP"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   int64
		promo   func() *domain.Promotion
		wantErr error
	}{
		{"operator of another canteen", otherOperatorID, func() *domain.Promotion { return newPromotion(f, 1, "X") }, domain.ErrUnauthorized},
		{"customer", customerID, func() *domain.Promotion { return newPromotion(f, 1, "X") }, domain.ErrUnauthorized},
		{"unknown canteen", adminID, func() *domain.Promotion { return newPromotion(f, 99, "X") }, domain.ErrNotFound},
		{"duplicate code", operatorID, func() *domain.Promotion { return newPromotion(f, 1, "DUP") }, domain.ErrValidation},
		{"percentage above 100", operatorID, func() *domain.Promotion {
			p := newPromotion(f, 1, "ALL")
			p.DiscountValue = decimal.NewFromInt(120)
			return p
		}, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.promoSvc.Create(ctx, tt.actor, tt.promo())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
