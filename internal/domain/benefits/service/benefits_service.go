package service

import (
	"context"
	"errors"
	"fmt"

	"benefits_gateway/internal/domain/benefits/model"
	"benefits_gateway/internal/domain/benefits/repository"
	"benefits_gateway/internal/pkg/authority"
	"benefits_gateway/internal/pkg/worker"
	"benefits_gateway/pkg/logger"
	"benefits_gateway/pkg/metrics"

	"go.uber.org/zap"
)

// ErrNotFound 实体在权威服务和本地缓存中都不存在
var ErrNotFound = errors.New("not found in authority or cache")

// CacheStats 各缓存分区的行数
type CacheStats struct {
	FavoritesCount int64 `json:"favoritesCount"`
	ReservedCount  int64 `json:"reservedCount"`
	BookingsCount  int64 `json:"bookingsCount"`
}

// BenefitsService 离线感知的缓存协调层
//
// 写路径：一律先调用权威服务，失败则整个操作失败，本地缓存不动；
// 成功后的缓存更新是尽力而为的影子写，失败只记日志不上抛。
// 读路径：一律先读权威服务并全量替换对应缓存分区；权威服务不可达
// 时降级返回本地缓存，fromCache 返回 true。
type BenefitsService interface {
	FavoritePromotion(ctx context.Context, userID string, promotionID int64) error
	UnfavoritePromotion(ctx context.Context, userID string, promotionID int64) error
	GetFavoritePromotions(ctx context.Context, userID string) (promos []model.CachedPromotion, fromCache bool, err error)
	GetReservedPromotions(ctx context.Context, userID string) (promos []model.CachedPromotion, fromCache bool, err error)
	CreateBooking(ctx context.Context, userID string, promotionID int64) (*model.CachedBooking, error)
	CancelBooking(ctx context.Context, userID string, bookingID int64) (*model.CachedBooking, error)
	UpdateBooking(ctx context.Context, bookingID int64, status string) (*model.CachedBooking, error)
	GetUserBookings(ctx context.Context, userID string) (bookings []model.CachedBooking, fromCache bool, err error)
	GetBookingByID(ctx context.Context, bookingID int64) (*model.CachedBooking, error)
	ClearAllCache(ctx context.Context) error
	GetCacheStats(ctx context.Context) (*CacheStats, error)
}

type benefitsService struct {
	authority authority.Client
	store     repository.CacheStore
	pool      *worker.Pool // 可为 nil，影子写失败时不做后台重试
	collector *metrics.MetricsCollector
	log       *zap.Logger
}

// NewBenefitsService 创建缓存协调服务
func NewBenefitsService(client authority.Client, store repository.CacheStore, pool *worker.Pool) BenefitsService {
	log := logger.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &benefitsService{
		authority: client,
		store:     store,
		pool:      pool,
		collector: metrics.GetGlobalCollector(),
		log:       log,
	}
}

// shadowWrite 执行一次影子缓存写：权威服务已经成功，这里的失败
// 只记日志并丢进重试池，永远不改变调用方看到的结果
func (s *benefitsService) shadowWrite(ctx context.Context, name, partition string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		s.log.Warn("Cache shadow write failed",
			zap.String("task", name),
			zap.String("partition", partition),
			zap.Error(err))
		s.collector.RecordShadowWriteError(partition)
		if s.pool != nil {
			s.pool.Submit(worker.ShadowTask{Name: name, Run: fn})
		}
	}
}

// cachedFavoriteTag 读取促销在缓存中已有的收藏标记，行不存在时返回 false
func (s *benefitsService) cachedFavoriteTag(ctx context.Context, promotionID int64) bool {
	existing, err := s.store.GetPromotionByID(ctx, promotionID)
	if err != nil {
		return false
	}
	return existing.IsFavorited
}

// cachedReservedTag 读取促销在缓存中已有的预订标记
func (s *benefitsService) cachedReservedTag(ctx context.Context, promotionID int64) bool {
	existing, err := s.store.GetPromotionByID(ctx, promotionID)
	if err != nil {
		return false
	}
	return existing.IsReserved
}

func (s *benefitsService) FavoritePromotion(ctx context.Context, userID string, promotionID int64) error {
	// 权威服务优先：失败则整个操作失败，缓存保持原样
	if err := s.authority.FavoritePromotion(ctx, promotionID, userID); err != nil {
		return err
	}

	s.shadowWrite(ctx, fmt.Sprintf("favorite_promotion_%d", promotionID), repository.PartitionFavorites,
		func(ctx context.Context) error {
			promo, err := s.authority.GetPromotionByID(ctx, promotionID)
			if err != nil {
				return err
			}
			row := model.PromotionFromAuthority(*promo, s.cachedReservedTag(ctx, promotionID))
			row.IsFavorited = true
			return s.store.UpsertPromotion(ctx, &row)
		})

	return nil
}

func (s *benefitsService) UnfavoritePromotion(ctx context.Context, userID string, promotionID int64) error {
	if err := s.authority.UnfavoritePromotion(ctx, promotionID, userID); err != nil {
		return err
	}

	s.shadowWrite(ctx, fmt.Sprintf("unfavorite_promotion_%d", promotionID), repository.PartitionFavorites,
		func(ctx context.Context) error {
			existing, err := s.store.GetPromotionByID(ctx, promotionID)
			if errors.Is(err, repository.ErrRowNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			// 只移除收藏分区成员关系；行若仍被预订则保留，
			// 否则由存储层的孤儿清理策略清除
			existing.IsFavorited = false
			return s.store.UpsertPromotion(ctx, existing)
		})

	return nil
}

func (s *benefitsService) GetFavoritePromotions(ctx context.Context, userID string) ([]model.CachedPromotion, bool, error) {
	fresh, err := s.authority.GetFavoritePromotions(ctx, userID)
	if err != nil {
		// 降级：读操作永远不失败，返回本地最后已知状态
		s.collector.RecordCacheFallback("get_favorite_promotions")
		cached, cerr := s.store.QueryFavorited(ctx)
		if cerr != nil {
			s.log.Warn("Cache fallback read failed", zap.String("partition", repository.PartitionFavorites), zap.Error(cerr))
			return []model.CachedPromotion{}, true, nil
		}
		return cached, true, nil
	}

	rows := model.PromotionsFromAuthority(fresh, false)
	s.collector.RecordPartitionRefresh(repository.PartitionFavorites)
	s.shadowWrite(ctx, "refresh_favorites", repository.PartitionFavorites,
		func(ctx context.Context) error {
			return s.store.ReplaceFavorited(ctx, rows)
		})

	// 返回权威数据；收藏标记按分区语义置位
	out := make([]model.CachedPromotion, len(rows))
	for i, row := range rows {
		row.IsFavorited = true
		out[i] = row
	}
	return out, false, nil
}

func (s *benefitsService) GetReservedPromotions(ctx context.Context, userID string) ([]model.CachedPromotion, bool, error) {
	fresh, err := s.authority.GetReservedPromotions(ctx, userID)
	if err != nil {
		s.collector.RecordCacheFallback("get_reserved_promotions")
		cached, cerr := s.store.QueryReserved(ctx)
		if cerr != nil {
			s.log.Warn("Cache fallback read failed", zap.String("partition", repository.PartitionReserved), zap.Error(cerr))
			return []model.CachedPromotion{}, true, nil
		}
		return cached, true, nil
	}

	rows := model.PromotionsFromAuthority(fresh, true)
	s.collector.RecordPartitionRefresh(repository.PartitionReserved)
	s.shadowWrite(ctx, "refresh_reserved", repository.PartitionReserved,
		func(ctx context.Context) error {
			return s.store.ReplaceReserved(ctx, rows)
		})

	return rows, false, nil
}

func (s *benefitsService) CreateBooking(ctx context.Context, userID string, promotionID int64) (*model.CachedBooking, error) {
	created, err := s.authority.CreateBooking(ctx, authority.Booking{
		UserID:      userID,
		PromotionID: promotionID,
	})
	if err != nil {
		return nil, err
	}

	// (a) 拉取促销详情并以预订标记缓存
	s.shadowWrite(ctx, fmt.Sprintf("cache_reserved_promotion_%d", created.PromotionID), repository.PartitionReserved,
		func(ctx context.Context) error {
			promo, err := s.authority.GetPromotionByID(ctx, created.PromotionID)
			if err != nil {
				return err
			}
			row := model.PromotionFromAuthority(*promo, true)
			row.IsFavorited = s.cachedFavoriteTag(ctx, created.PromotionID)
			return s.store.UpsertPromotion(ctx, &row)
		})

	// (b) 尽力而为：顺带收藏该促销并刷新整个收藏分区。
	// 这里的任何失败都只记日志，不影响预订结果
	if err := s.authority.FavoritePromotion(ctx, promotionID, userID); err != nil {
		s.log.Warn("Best-effort favorite after booking failed",
			zap.Int64("promotion_id", promotionID), zap.Error(err))
	} else {
		favs, err := s.authority.GetFavoritePromotions(ctx, userID)
		if err != nil {
			s.log.Warn("Favorites refresh after booking failed", zap.Error(err))
		} else {
			rows := model.PromotionsFromAuthority(favs, false)
			s.shadowWrite(ctx, "refresh_favorites_after_booking", repository.PartitionFavorites,
				func(ctx context.Context) error {
					return s.store.ReplaceFavorited(ctx, rows)
				})
		}
	}

	// (c) 无条件全量重读该用户的预订列表。服务端可能复用已取消的
	// bookingId，局部补丁会留下幽灵行，只能整体替换
	createdRow := model.BookingFromAuthority(*created)
	list, err := s.authority.GetUserBookings(ctx, userID)
	if err != nil {
		// 重读失败：至少把刚创建的预订写进缓存，分区不至于空白
		s.log.Warn("Bookings re-read after create failed, caching created row only",
			zap.String("user_id", userID), zap.Error(err))
		s.shadowWrite(ctx, fmt.Sprintf("cache_created_booking_%d", created.ID), repository.PartitionBookings,
			func(ctx context.Context) error {
				row := createdRow
				return s.store.UpsertBooking(ctx, &row)
			})
	} else {
		rows := model.BookingsFromAuthority(list)
		s.collector.RecordPartitionRefresh(repository.PartitionBookings)
		s.shadowWrite(ctx, "refresh_bookings_after_create", repository.PartitionBookings,
			func(ctx context.Context) error {
				return s.store.ReplaceBookingsForUser(ctx, userID, rows)
			})
	}

	return &createdRow, nil
}

func (s *benefitsService) CancelBooking(ctx context.Context, userID string, bookingID int64) (*model.CachedBooking, error) {
	cancelled, err := s.authority.CancelBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	// 更新而不是删除：cooldownUntil 由服务端在取消时写入，
	// 客户端的冷却检查依赖这行的存在
	row := model.BookingFromAuthority(*cancelled)
	s.shadowWrite(ctx, fmt.Sprintf("cache_cancelled_booking_%d", bookingID), repository.PartitionBookings,
		func(ctx context.Context) error {
			r := row
			return s.store.UpdateBooking(ctx, &r)
		})

	// 尽力而为：促销移出预订分区，收藏标记保持不动
	s.shadowWrite(ctx, fmt.Sprintf("release_reserved_promotion_%d", cancelled.PromotionID), repository.PartitionReserved,
		func(ctx context.Context) error {
			favorited := s.cachedFavoriteTag(ctx, cancelled.PromotionID)

			promo, err := s.authority.GetPromotionByID(ctx, cancelled.PromotionID)
			if err != nil {
				// 拉不到新详情就用已缓存的行清预订标记
				existing, gerr := s.store.GetPromotionByID(ctx, cancelled.PromotionID)
				if errors.Is(gerr, repository.ErrRowNotFound) {
					return nil
				}
				if gerr != nil {
					return gerr
				}
				existing.IsReserved = false
				return s.store.UpsertPromotion(ctx, existing)
			}

			fresh := model.PromotionFromAuthority(*promo, false)
			fresh.IsFavorited = favorited
			return s.store.UpsertPromotion(ctx, &fresh)
		})

	return &row, nil
}

func (s *benefitsService) UpdateBooking(ctx context.Context, bookingID int64, status string) (*model.CachedBooking, error) {
	updated, err := s.authority.UpdateBooking(ctx, bookingID, status)
	if err == nil {
		row := model.BookingFromAuthority(*updated)
		s.shadowWrite(ctx, fmt.Sprintf("cache_updated_booking_%d", bookingID), repository.PartitionBookings,
			func(ctx context.Context) error {
				r := row
				return s.store.UpdateBooking(ctx, &r)
			})
		return &row, nil
	}

	// 与其他写操作不同：状态更新失败时降级返回当前缓存的预订。
	// 调用方把这个操作当读用，必须保持这个回退行为
	cached, cerr := s.store.QueryBookingByID(ctx, bookingID)
	if cerr == nil {
		s.collector.RecordCacheFallback("update_booking")
		s.log.Warn("Booking status update failed, serving cached booking",
			zap.Int64("booking_id", bookingID), zap.Error(err))
		return cached, nil
	}

	return nil, err
}

func (s *benefitsService) GetUserBookings(ctx context.Context, userID string) ([]model.CachedBooking, bool, error) {
	fresh, err := s.authority.GetUserBookings(ctx, userID)
	if err != nil {
		s.collector.RecordCacheFallback("get_user_bookings")
		cached, cerr := s.store.QueryBookingsForUser(ctx, userID)
		if cerr != nil {
			s.log.Warn("Cache fallback read failed", zap.String("partition", repository.PartitionBookings), zap.Error(cerr))
			return []model.CachedBooking{}, true, nil
		}
		return cached, true, nil
	}

	rows := model.BookingsFromAuthority(fresh)
	s.collector.RecordPartitionRefresh(repository.PartitionBookings)
	s.shadowWrite(ctx, "refresh_bookings", repository.PartitionBookings,
		func(ctx context.Context) error {
			return s.store.ReplaceBookingsForUser(ctx, userID, rows)
		})

	return rows, false, nil
}

func (s *benefitsService) GetBookingByID(ctx context.Context, bookingID int64) (*model.CachedBooking, error) {
	fresh, err := s.authority.GetBookingByID(ctx, bookingID)
	if err == nil {
		row := model.BookingFromAuthority(*fresh)
		s.shadowWrite(ctx, fmt.Sprintf("cache_booking_%d", bookingID), repository.PartitionBookings,
			func(ctx context.Context) error {
				r := row
				return s.store.UpsertBooking(ctx, &r)
			})
		return &row, nil
	}

	s.collector.RecordCacheFallback("get_booking_by_id")
	cached, cerr := s.store.QueryBookingByID(ctx, bookingID)
	if cerr == nil {
		return cached, nil
	}

	// 两边都没有：not-found，原始的权威服务错误作为 cause 保留
	return nil, fmt.Errorf("booking %d: %w: %w", bookingID, ErrNotFound, err)
}

func (s *benefitsService) ClearAllCache(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	s.log.Info("Local cache cleared")
	return nil
}

func (s *benefitsService) GetCacheStats(ctx context.Context) (*CacheStats, error) {
	favorites, err := s.store.CountFavorited(ctx)
	if err != nil {
		return nil, fmt.Errorf("count favorites: %w", err)
	}
	reserved, err := s.store.CountReserved(ctx)
	if err != nil {
		return nil, fmt.Errorf("count reserved: %w", err)
	}
	bookings, err := s.store.CountBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	s.collector.SetPartitionRows(repository.PartitionFavorites, favorites)
	s.collector.SetPartitionRows(repository.PartitionReserved, reserved)
	s.collector.SetPartitionRows(repository.PartitionBookings, bookings)

	return &CacheStats{
		FavoritesCount: favorites,
		ReservedCount:  reserved,
		BookingsCount:  bookings,
	}, nil
}
