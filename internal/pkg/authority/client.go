package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"benefits_gateway/internal/pkg/config"
	"benefits_gateway/pkg/metrics"
)

// Client 远端权益服务客户端接口
// 每个写操作的调用方都必须先等待这里的结果，成功后才允许更新本地缓存
type Client interface {
	FavoritePromotion(ctx context.Context, promotionID int64, userID string) error
	UnfavoritePromotion(ctx context.Context, promotionID int64, userID string) error
	GetFavoritePromotions(ctx context.Context, userID string) ([]Promotion, error)
	GetPromotionByID(ctx context.Context, promotionID int64) (*Promotion, error)
	CreateBooking(ctx context.Context, booking Booking) (*Booking, error)
	CancelBooking(ctx context.Context, bookingID int64) (*Booking, error)
	UpdateBooking(ctx context.Context, bookingID int64, status string) (*Booking, error)
	GetReservedPromotions(ctx context.Context, userID string) ([]Promotion, error)
	GetUserBookings(ctx context.Context, userID string) ([]Booking, error)
	GetBookingByID(ctx context.Context, bookingID int64) (*Booking, error)
}

// httpClient Client 的 HTTP 实现
type httpClient struct {
	baseURL      string
	serviceToken string
	timeout      time.Duration
	client       *http.Client
}

// NewHTTPClient 创建权益服务 HTTP 客户端
// 底层 http.Client 不设置 Timeout，超时完全由每次请求的 context 控制
func NewHTTPClient(cfg config.AuthorityConfig) Client {
	return &httpClient{
		baseURL:      cfg.BaseURL,
		serviceToken: cfg.ServiceToken,
		timeout:      cfg.Timeout,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
	}
}

// do 执行一次权威服务调用并解码 JSON 响应
// out 为 nil 时丢弃响应体
func (c *httpClient) do(ctx context.Context, operation, method, path string, query url.Values, body interface{}, out interface{}) error {
	start := time.Now()
	err := c.doOnce(ctx, method, path, query, body, out)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.GetGlobalCollector().RecordAuthorityRequest(operation, status, time.Since(start))

	if err != nil {
		return fmt.Errorf("authority %s: %w", operation, err)
	}
	return nil
}

func (c *httpClient) doOnce(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 读取一小段响应体辅助排查
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(snippet))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *httpClient) FavoritePromotion(ctx context.Context, promotionID int64, userID string) error {
	q := url.Values{}
	q.Set("userId", userID)
	path := "/promotions/" + strconv.FormatInt(promotionID, 10) + "/favorite"
	return c.do(ctx, "favorite_promotion", http.MethodPost, path, q, nil, nil)
}

func (c *httpClient) UnfavoritePromotion(ctx context.Context, promotionID int64, userID string) error {
	q := url.Values{}
	q.Set("userId", userID)
	path := "/promotions/" + strconv.FormatInt(promotionID, 10) + "/favorite"
	return c.do(ctx, "unfavorite_promotion", http.MethodDelete, path, q, nil, nil)
}

func (c *httpClient) GetFavoritePromotions(ctx context.Context, userID string) ([]Promotion, error) {
	q := url.Values{}
	q.Set("userId", userID)
	var promos []Promotion
	if err := c.do(ctx, "get_favorite_promotions", http.MethodGet, "/promotions/favorites", q, nil, &promos); err != nil {
		return nil, err
	}
	return promos, nil
}

func (c *httpClient) GetPromotionByID(ctx context.Context, promotionID int64) (*Promotion, error) {
	var promo Promotion
	path := "/promotions/" + strconv.FormatInt(promotionID, 10)
	if err := c.do(ctx, "get_promotion_by_id", http.MethodGet, path, nil, nil, &promo); err != nil {
		return nil, err
	}
	return &promo, nil
}

func (c *httpClient) CreateBooking(ctx context.Context, booking Booking) (*Booking, error) {
	var created Booking
	if err := c.do(ctx, "create_booking", http.MethodPost, "/bookings", nil, booking, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *httpClient) CancelBooking(ctx context.Context, bookingID int64) (*Booking, error) {
	var cancelled Booking
	path := "/bookings/" + strconv.FormatInt(bookingID, 10) + "/cancel"
	if err := c.do(ctx, "cancel_booking", http.MethodPost, path, nil, nil, &cancelled); err != nil {
		return nil, err
	}
	return &cancelled, nil
}

func (c *httpClient) UpdateBooking(ctx context.Context, bookingID int64, status string) (*Booking, error) {
	var updated Booking
	path := "/bookings/" + strconv.FormatInt(bookingID, 10)
	body := map[string]string{"status": status}
	if err := c.do(ctx, "update_booking", http.MethodPatch, path, nil, body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *httpClient) GetReservedPromotions(ctx context.Context, userID string) ([]Promotion, error) {
	q := url.Values{}
	q.Set("userId", userID)
	var promos []Promotion
	if err := c.do(ctx, "get_reserved_promotions", http.MethodGet, "/promotions/reserved", q, nil, &promos); err != nil {
		return nil, err
	}
	return promos, nil
}

func (c *httpClient) GetUserBookings(ctx context.Context, userID string) ([]Booking, error) {
	q := url.Values{}
	q.Set("userId", userID)
	var bookings []Booking
	if err := c.do(ctx, "get_user_bookings", http.MethodGet, "/bookings", q, nil, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (c *httpClient) GetBookingByID(ctx context.Context, bookingID int64) (*Booking, error) {
	var booking Booking
	path := "/bookings/" + strconv.FormatInt(bookingID, 10)
	if err := c.do(ctx, "get_booking_by_id", http.MethodGet, path, nil, nil, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}
