package repository

import (
	"context"
	"errors"
	"fmt"

	"benefits_gateway/internal/domain/benefits/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormStore CacheStore 的 GORM 实现（sqlite / postgres）
type gormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 GORM 缓存存储
func NewGormStore(db *gorm.DB) CacheStore {
	return &gormStore{db: db}
}

// upsertPromotionTx 在事务内插入或整行替换一个促销，并重建分类关联
func upsertPromotionTx(tx *gorm.DB, promo *model.CachedPromotion) error {
	cats := promo.Categories
	row := *promo
	row.Categories = nil

	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("upsert promotion %d: %w", promo.PromotionID, err)
	}

	assoc := tx.Model(&row).Association("Categories")
	if len(cats) == 0 {
		if err := assoc.Clear(); err != nil {
			return fmt.Errorf("clear categories of promotion %d: %w", promo.PromotionID, err)
		}
		return nil
	}
	if err := assoc.Replace(&cats); err != nil {
		return fmt.Errorf("replace categories of promotion %d: %w", promo.PromotionID, err)
	}
	return nil
}

// purgeOrphansTx 清除不再属于任何分区的促销行及其残留关联
func purgeOrphansTx(tx *gorm.DB) error {
	if err := tx.Where("is_favorited = ? AND is_reserved = ?", false, false).
		Delete(&model.CachedPromotion{}).Error; err != nil {
		return fmt.Errorf("purge orphan promotions: %w", err)
	}
	if err := tx.Exec("DELETE FROM cached_promotion_categories WHERE promotion_id NOT IN (SELECT promotion_id FROM cached_promotions)").Error; err != nil {
		return fmt.Errorf("purge orphan category links: %w", err)
	}
	return nil
}

func (s *gormStore) UpsertPromotion(ctx context.Context, promo *model.CachedPromotion) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertPromotionTx(tx, promo); err != nil {
			return err
		}
		// 整行替换可能移除了最后一个分区标记
		return purgeOrphansTx(tx)
	})
}

func (s *gormStore) GetPromotionByID(ctx context.Context, promotionID int64) (*model.CachedPromotion, error) {
	var promo model.CachedPromotion
	err := s.db.WithContext(ctx).Preload("Categories").
		Where("promotion_id = ?", promotionID).First(&promo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get promotion %d: %w", promotionID, err)
	}
	return &promo, nil
}

func (s *gormStore) DeletePromotionByID(ctx context.Context, promotionID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM cached_promotion_categories WHERE promotion_id = ?", promotionID).Error; err != nil {
			return fmt.Errorf("delete category links of promotion %d: %w", promotionID, err)
		}
		if err := tx.Where("promotion_id = ?", promotionID).Delete(&model.CachedPromotion{}).Error; err != nil {
			return fmt.Errorf("delete promotion %d: %w", promotionID, err)
		}
		return nil
	})
}

func (s *gormStore) DeleteAllFavorited(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.CachedPromotion{}).Where("is_favorited = ?", true).
			Update("is_favorited", false).Error; err != nil {
			return fmt.Errorf("clear favorites partition: %w", err)
		}
		return purgeOrphansTx(tx)
	})
}

func (s *gormStore) DeleteAllReserved(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.CachedPromotion{}).Where("is_reserved = ?", true).
			Update("is_reserved", false).Error; err != nil {
			return fmt.Errorf("clear reserved partition: %w", err)
		}
		return purgeOrphansTx(tx)
	})
}

func (s *gormStore) QueryFavorited(ctx context.Context) ([]model.CachedPromotion, error) {
	var promos []model.CachedPromotion
	err := s.db.WithContext(ctx).Preload("Categories").
		Where("is_favorited = ?", true).Order("promotion_id").Find(&promos).Error
	if err != nil {
		return nil, fmt.Errorf("query favorites partition: %w", err)
	}
	return promos, nil
}

func (s *gormStore) QueryReserved(ctx context.Context) ([]model.CachedPromotion, error) {
	var promos []model.CachedPromotion
	err := s.db.WithContext(ctx).Preload("Categories").
		Where("is_reserved = ?", true).Order("promotion_id").Find(&promos).Error
	if err != nil {
		return nil, fmt.Errorf("query reserved partition: %w", err)
	}
	return promos, nil
}

// replacePartition 全量替换一个分区：先清空分区标记，再写入新行，最后清孤儿
// 整个替换在一个事务里完成，并发读只会看到旧快照或新快照
func (s *gormStore) replacePartition(ctx context.Context, favorites bool, promos []model.CachedPromotion) error {
	tagColumn := "is_reserved"
	if favorites {
		tagColumn = "is_favorited"
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.CachedPromotion{}).Where(tagColumn+" = ?", true).
			Update(tagColumn, false).Error; err != nil {
			return fmt.Errorf("clear %s partition: %w", tagColumn, err)
		}

		for i := range promos {
			row := promos[i]
			if favorites {
				row.IsFavorited = true
			} else {
				row.IsReserved = true
			}

			// 保留另一个分区的已有成员关系
			var existing model.CachedPromotion
			err := tx.Where("promotion_id = ?", row.PromotionID).First(&existing).Error
			if err == nil {
				if favorites {
					row.IsReserved = row.IsReserved || existing.IsReserved
				} else {
					row.IsFavorited = row.IsFavorited || existing.IsFavorited
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("read existing promotion %d: %w", row.PromotionID, err)
			}

			if err := upsertPromotionTx(tx, &row); err != nil {
				return err
			}
		}

		return purgeOrphansTx(tx)
	})
}

func (s *gormStore) ReplaceFavorited(ctx context.Context, promos []model.CachedPromotion) error {
	return s.replacePartition(ctx, true, promos)
}

func (s *gormStore) ReplaceReserved(ctx context.Context, promos []model.CachedPromotion) error {
	return s.replacePartition(ctx, false, promos)
}

func (s *gormStore) UpsertBooking(ctx context.Context, booking *model.CachedBooking) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(booking).Error
	if err != nil {
		return fmt.Errorf("upsert booking %d: %w", booking.BookingID, err)
	}
	return nil
}

func (s *gormStore) UpdateBooking(ctx context.Context, booking *model.CachedBooking) error {
	// Save 整行写入：取消预订要求更新而不是删除，且必须覆盖所有字段
	// （包括被置空/置位的 cancelledDate 和 cooldownUntil）
	if err := s.db.WithContext(ctx).Save(booking).Error; err != nil {
		return fmt.Errorf("update booking %d: %w", booking.BookingID, err)
	}
	return nil
}

func (s *gormStore) DeleteAllBookingsForUser(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.CachedBooking{}).Error
	if err != nil {
		return fmt.Errorf("delete bookings of user %s: %w", userID, err)
	}
	return nil
}

func (s *gormStore) QueryBookingsForUser(ctx context.Context, userID string) ([]model.CachedBooking, error) {
	var bookings []model.CachedBooking
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("booking_id").Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("query bookings of user %s: %w", userID, err)
	}
	return bookings, nil
}

func (s *gormStore) QueryBookingByID(ctx context.Context, bookingID int64) (*model.CachedBooking, error) {
	var booking model.CachedBooking
	err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", bookingID, err)
	}
	return &booking, nil
}

func (s *gormStore) ReplaceBookingsForUser(ctx context.Context, userID string, bookings []model.CachedBooking) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.CachedBooking{}).Error; err != nil {
			return fmt.Errorf("clear bookings of user %s: %w", userID, err)
		}
		for i := range bookings {
			row := bookings[i]
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("insert booking %d: %w", row.BookingID, err)
			}
		}
		return nil
	})
}

func (s *gormStore) CountFavorited(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.CachedPromotion{}).
		Where("is_favorited = ?", true).Count(&count).Error
	return count, err
}

func (s *gormStore) CountReserved(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.CachedPromotion{}).
		Where("is_reserved = ?", true).Count(&count).Error
	return count, err
}

func (s *gormStore) CountBookings(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.CachedBooking{}).Count(&count).Error
	return count, err
}

func (s *gormStore) DeleteAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range []string{
			"DELETE FROM cached_promotion_categories",
			"DELETE FROM cached_promotions",
			"DELETE FROM cached_categories",
			"DELETE FROM cached_bookings",
		} {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
		}
		return nil
	})
}
