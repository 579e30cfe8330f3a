package repository

import (
	"context"
	"testing"
	"time"

	"benefits_gateway/internal/domain/benefits/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) CacheStore {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&model.CachedCategory{}, &model.CachedPromotion{}, &model.CachedBooking{})
	require.NoError(t, err)

	return NewGormStore(db)
}

func promoRow(id int64, favorited, reserved bool) model.CachedPromotion {
	return model.CachedPromotion{
		PromotionID:  id,
		Title:        "Promo",
		Status:       "active",
		BusinessName: "Cafe Central",
		IsFavorited:  favorited,
		IsReserved:   reserved,
		Categories:   []model.CachedCategory{{CategoryID: 1, Name: "Food"}},
	}
}

func bookingRow(id int64, userID string, status string) model.CachedBooking {
	return model.CachedBooking{
		BookingID:   id,
		UserID:      userID,
		PromotionID: 1,
		BookingDate: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Status:      status,
	}
}

func partitionIDs(promos []model.CachedPromotion) []int64 {
	ids := make([]int64, len(promos))
	for i, p := range promos {
		ids[i] = p.PromotionID
	}
	return ids
}

func TestReplaceFavorited(t *testing.T) {
	ctx := context.Background()

	t.Run("New snapshot fully replaces the old one", func(t *testing.T) {
		store := setupTestStore(t)

		// 旧快照 {1, 2} -> 新快照 {2, 3}
		err := store.ReplaceFavorited(ctx, []model.CachedPromotion{promoRow(1, false, false), promoRow(2, false, false)})
		require.NoError(t, err)
		err = store.ReplaceFavorited(ctx, []model.CachedPromotion{promoRow(2, false, false), promoRow(3, false, false)})
		require.NoError(t, err)

		favs, err := store.QueryFavorited(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 3}, partitionIDs(favs))

		// 1 不再属于任何分区，整行被清除
		_, err = store.GetPromotionByID(ctx, 1)
		assert.ErrorIs(t, err, ErrRowNotFound)
	})

	t.Run("Reserved rows survive a favorites replacement", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.ReplaceReserved(ctx, []model.CachedPromotion{promoRow(1, false, false)}))
		require.NoError(t, store.ReplaceFavorited(ctx, []model.CachedPromotion{promoRow(2, false, false)}))

		reserved, err := store.QueryReserved(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, partitionIDs(reserved))

		favs, err := store.QueryFavorited(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, partitionIDs(favs))
	})

	t.Run("Row in both partitions keeps the other tag", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.ReplaceReserved(ctx, []model.CachedPromotion{promoRow(1, false, false)}))
		require.NoError(t, store.ReplaceFavorited(ctx, []model.CachedPromotion{promoRow(1, false, false)}))

		promo, err := store.GetPromotionByID(ctx, 1)
		require.NoError(t, err)
		assert.True(t, promo.IsFavorited)
		assert.True(t, promo.IsReserved)

		// 收藏分区清空后，行仍留在预订分区
		require.NoError(t, store.ReplaceFavorited(ctx, nil))
		promo, err = store.GetPromotionByID(ctx, 1)
		require.NoError(t, err)
		assert.False(t, promo.IsFavorited)
		assert.True(t, promo.IsReserved)
	})

	t.Run("Empty snapshot clears the partition", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.ReplaceFavorited(ctx, []model.CachedPromotion{promoRow(1, false, false)}))
		require.NoError(t, store.ReplaceFavorited(ctx, nil))

		favs, err := store.QueryFavorited(ctx)
		require.NoError(t, err)
		assert.Empty(t, favs)
	})

	t.Run("Replacement refreshes descriptive fields", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.ReplaceFavorited(ctx, []model.CachedPromotion{promoRow(1, false, false)}))

		updated := promoRow(1, false, false)
		updated.Title = "Promo v2"
		updated.Categories = []model.CachedCategory{{CategoryID: 2, Name: "Drinks"}}
		require.NoError(t, store.ReplaceFavorited(ctx, []model.CachedPromotion{updated}))

		promo, err := store.GetPromotionByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Promo v2", promo.Title)
		require.Len(t, promo.Categories, 1)
		assert.Equal(t, int64(2), promo.Categories[0].CategoryID)
	})
}

func TestUpsertPromotion(t *testing.T) {
	ctx := context.Background()

	t.Run("Clearing the last tag purges the row", func(t *testing.T) {
		store := setupTestStore(t)

		row := promoRow(1, true, false)
		require.NoError(t, store.UpsertPromotion(ctx, &row))

		cleared := promoRow(1, false, false)
		require.NoError(t, store.UpsertPromotion(ctx, &cleared))

		_, err := store.GetPromotionByID(ctx, 1)
		assert.ErrorIs(t, err, ErrRowNotFound)
	})

	t.Run("Clearing one tag keeps a dual-partition row", func(t *testing.T) {
		store := setupTestStore(t)

		row := promoRow(1, true, true)
		require.NoError(t, store.UpsertPromotion(ctx, &row))

		released := promoRow(1, true, false)
		require.NoError(t, store.UpsertPromotion(ctx, &released))

		promo, err := store.GetPromotionByID(ctx, 1)
		require.NoError(t, err)
		assert.True(t, promo.IsFavorited)
		assert.False(t, promo.IsReserved)
	})
}

func TestReplaceBookingsForUser(t *testing.T) {
	ctx := context.Background()

	t.Run("Reused booking id leaves a single row", func(t *testing.T) {
		store := setupTestStore(t)

		cancelled := bookingRow(7, "u1", "cancelled")
		require.NoError(t, store.ReplaceBookingsForUser(ctx, "u1", []model.CachedBooking{cancelled}))

		// 服务端复用 id 7 作为新的 pending 预订
		reused := bookingRow(7, "u1", "pending")
		require.NoError(t, store.ReplaceBookingsForUser(ctx, "u1", []model.CachedBooking{reused}))

		bookings, err := store.QueryBookingsForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, bookings, 1)
		assert.Equal(t, int64(7), bookings[0].BookingID)
		assert.Equal(t, "pending", bookings[0].Status)
	})

	t.Run("Only the target user's rows are replaced", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.ReplaceBookingsForUser(ctx, "u1", []model.CachedBooking{bookingRow(1, "u1", "pending")}))
		require.NoError(t, store.ReplaceBookingsForUser(ctx, "u2", []model.CachedBooking{bookingRow(2, "u2", "pending")}))
		require.NoError(t, store.ReplaceBookingsForUser(ctx, "u1", []model.CachedBooking{bookingRow(3, "u1", "pending")}))

		u1, err := store.QueryBookingsForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, u1, 1)
		assert.Equal(t, int64(3), u1[0].BookingID)

		u2, err := store.QueryBookingsForUser(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, u2, 1)
		assert.Equal(t, int64(2), u2[0].BookingID)
	})
}

func TestUpdateBookingKeepsRow(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	row := bookingRow(5, "u1", "pending")
	require.NoError(t, store.UpsertBooking(ctx, &row))

	cooldown := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	cancelledAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	updated := bookingRow(5, "u1", "cancelled")
	updated.CancelledDate = &cancelledAt
	updated.CooldownUntil = &cooldown
	require.NoError(t, store.UpdateBooking(ctx, &updated))

	got, err := store.QueryBookingByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)
	require.NotNil(t, got.CooldownUntil)
	assert.True(t, got.CooldownUntil.Equal(cooldown))
	require.NotNil(t, got.CancelledDate)
	assert.True(t, got.CancelledDate.Equal(cancelledAt))

	count, err := store.CountBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestQueryBookingByIDNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.QueryBookingByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestCountsAndDeleteAll(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	require.NoError(t, store.ReplaceFavorited(ctx, []model.CachedPromotion{promoRow(1, false, false), promoRow(2, false, false)}))
	require.NoError(t, store.ReplaceReserved(ctx, []model.CachedPromotion{promoRow(2, false, false)}))
	require.NoError(t, store.ReplaceBookingsForUser(ctx, "u1", []model.CachedBooking{bookingRow(1, "u1", "pending")}))

	favs, err := store.CountFavorited(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), favs)

	reserved, err := store.CountReserved(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reserved)

	bookings, err := store.CountBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bookings)

	require.NoError(t, store.DeleteAll(ctx))

	favs, err = store.CountFavorited(ctx)
	require.NoError(t, err)
	assert.Zero(t, favs)
	bookings, err = store.CountBookings(ctx)
	require.NoError(t, err)
	assert.Zero(t, bookings)
}
