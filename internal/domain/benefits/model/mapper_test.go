package model

import (
	"testing"
	"time"

	"benefits_gateway/internal/pkg/authority"

	"github.com/stretchr/testify/assert"
)

func TestPromotionFromAuthority(t *testing.T) {
	promo := authority.Promotion{
		ID:             9,
		Title:          "Free Coffee",
		TotalStock:     100,
		RemainingStock: 37,
		Status:         "active",
		BusinessName:   "Cafe Central",
		Categories:     []authority.Category{{ID: 1, Name: "Food"}, {ID: 2, Name: "Drinks"}},
	}

	t.Run("Reserved flag follows the argument", func(t *testing.T) {
		row := PromotionFromAuthority(promo, true)
		assert.True(t, row.IsReserved)
		assert.False(t, row.IsFavorited)

		row = PromotionFromAuthority(promo, false)
		assert.False(t, row.IsReserved)
	})

	t.Run("Categories map by id", func(t *testing.T) {
		row := PromotionFromAuthority(promo, false)
		assert.Len(t, row.Categories, 2)
		assert.Equal(t, int64(1), row.Categories[0].CategoryID)
		assert.Equal(t, "Drinks", row.Categories[1].Name)
	})

	t.Run("Round trip keeps descriptive fields", func(t *testing.T) {
		back := PromotionToAuthority(PromotionFromAuthority(promo, true))
		assert.Equal(t, promo, back)
	})

	t.Run("No categories maps to nil", func(t *testing.T) {
		bare := promo
		bare.Categories = nil
		row := PromotionFromAuthority(bare, false)
		assert.Nil(t, row.Categories)
	})
}

func TestBookingFromAuthority(t *testing.T) {
	cooldown := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	cancelledAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Cooldown and cancellation copied verbatim", func(t *testing.T) {
		b := authority.Booking{
			ID:            5,
			UserID:        "u1",
			PromotionID:   9,
			Status:        authority.BookingStatusCancelled,
			CancelledDate: &cancelledAt,
			CooldownUntil: &cooldown,
		}

		row := BookingFromAuthority(b)
		assert.Equal(t, int64(5), row.BookingID)
		assert.Equal(t, b.CooldownUntil, row.CooldownUntil)
		assert.Equal(t, b.CancelledDate, row.CancelledDate)
	})

	t.Run("Absent cooldown stays nil", func(t *testing.T) {
		row := BookingFromAuthority(authority.Booking{ID: 5, Status: authority.BookingStatusPending})
		assert.Nil(t, row.CooldownUntil)
		assert.Nil(t, row.CancelledDate)
	})

	t.Run("Round trip", func(t *testing.T) {
		b := authority.Booking{ID: 5, UserID: "u1", PromotionID: 9, Status: authority.BookingStatusUsed}
		assert.Equal(t, b, BookingToAuthority(BookingFromAuthority(b)))
	})
}
