package authority

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"benefits_gateway/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) Client {
	return NewHTTPClient(config.AuthorityConfig{
		BaseURL:      baseURL,
		Timeout:      2 * time.Second,
		ServiceToken: "test-token",
	})
}

func TestFavoritePromotionRequest(t *testing.T) {
	var gotMethod, gotPath, gotUser, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotUser = r.URL.Query().Get("userId")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.FavoritePromotion(context.Background(), 9, "u1")

	assert.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/promotions/9/favorite", gotPath)
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestUnfavoritePromotionRequest(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.UnfavoritePromotion(context.Background(), 9, "u1")

	assert.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/promotions/9/favorite", gotPath)
}

func TestGetFavoritePromotionsDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/promotions/favorites", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("userId"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]Promotion{
			{ID: 1, Title: "Free Coffee", Categories: []Category{{ID: 1, Name: "Food"}}},
			{ID: 2, Title: "Half Price Pizza"},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	promos, err := client.GetFavoritePromotions(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, promos, 2)
	assert.Equal(t, int64(1), promos[0].ID)
	assert.Equal(t, "Food", promos[0].Categories[0].Name)
}

func TestCreateBookingRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bookings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in Booking
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "u1", in.UserID)
		assert.Equal(t, int64(9), in.PromotionID)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Booking{ID: 42, UserID: "u1", PromotionID: 9, Status: BookingStatusPending})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	created, err := client.CreateBooking(context.Background(), Booking{UserID: "u1", PromotionID: 9})

	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
	assert.Equal(t, BookingStatusPending, created.Status)
}

func TestCancelBookingDecodesCooldown(t *testing.T) {
	cooldown := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bookings/42/cancel", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Booking{ID: 42, Status: BookingStatusCancelled, CooldownUntil: &cooldown})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	cancelled, err := client.CancelBooking(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, BookingStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CooldownUntil)
	assert.True(t, cancelled.CooldownUntil.Equal(cooldown))
}

func TestUpdateBookingRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/bookings/42", r.URL.Path)

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, BookingStatusUsed, in["status"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Booking{ID: 42, Status: BookingStatusUsed})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	updated, err := client.UpdateBooking(context.Background(), 42, BookingStatusUsed)

	require.NoError(t, err)
	assert.Equal(t, BookingStatusUsed, updated.Status)
}

func TestNotFoundMapsToErrNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.GetBookingByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.GetPromotionByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServerErrorIncludesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GetUserBookings(context.Background(), "u1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestContextCancellationAborts(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := newTestClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetReservedPromotions(ctx, "u1")
	assert.Error(t, err)
}
