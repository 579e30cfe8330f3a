package repository

import (
	"context"
	"errors"

	"benefits_gateway/internal/domain/benefits/model"
)

// ErrRowNotFound 缓存中不存在该行
var ErrRowNotFound = errors.New("cache row not found")

// 分区名，供指标与日志使用
const (
	PartitionFavorites = "favorites"
	PartitionReserved  = "reserved"
	PartitionBookings  = "bookings"
)

// CacheStore 本地缓存存储契约
//
// 分区替换操作（Replace*）必须是原子的：并发读取只能观察到替换前
// 或替换后的完整快照，不能观察到两者的混合。除此之外不假设任何
// 跨表事务保证，写入顺序由上层协调服务负责。
//
// 孤儿清理策略：一个促销行在不属于任何分区（既非收藏也非预订）后
// 立即从缓存中清除，由各个标记清除/替换操作内部保证。
type CacheStore interface {
	// 促销分区
	UpsertPromotion(ctx context.Context, promo *model.CachedPromotion) error
	GetPromotionByID(ctx context.Context, promotionID int64) (*model.CachedPromotion, error)
	DeletePromotionByID(ctx context.Context, promotionID int64) error
	DeleteAllFavorited(ctx context.Context) error
	DeleteAllReserved(ctx context.Context) error
	QueryFavorited(ctx context.Context) ([]model.CachedPromotion, error)
	QueryReserved(ctx context.Context) ([]model.CachedPromotion, error)
	ReplaceFavorited(ctx context.Context, promos []model.CachedPromotion) error
	ReplaceReserved(ctx context.Context, promos []model.CachedPromotion) error

	// 预订分区（按用户）
	UpsertBooking(ctx context.Context, booking *model.CachedBooking) error
	UpdateBooking(ctx context.Context, booking *model.CachedBooking) error
	DeleteAllBookingsForUser(ctx context.Context, userID string) error
	QueryBookingsForUser(ctx context.Context, userID string) ([]model.CachedBooking, error)
	QueryBookingByID(ctx context.Context, bookingID int64) (*model.CachedBooking, error)
	ReplaceBookingsForUser(ctx context.Context, userID string, bookings []model.CachedBooking) error

	// 统计与维护
	CountFavorited(ctx context.Context) (int64, error)
	CountReserved(ctx context.Context) (int64, error)
	CountBookings(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
}
