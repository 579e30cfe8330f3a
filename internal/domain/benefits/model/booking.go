package model

import "time"

// CachedBooking 预订的本地缓存行，按用户维度分区
// BookingID 由权威服务分配，服务端可能在取消后复用同一个 ID，
// 所以预订分区只能整体替换，不能做局部合并
type CachedBooking struct {
	BookingID      int64      `gorm:"primaryKey;autoIncrement:false" json:"bookingId"`
	UserID         string     `gorm:"index;type:varchar(64);not null" json:"userId"`
	PromotionID    int64      `gorm:"index;not null" json:"promotionId"`
	BookingDate    time.Time  `json:"bookingDate"`
	LimitUseDate   time.Time  `json:"limitUseDate"`
	Status         string     `gorm:"type:varchar(16);not null" json:"status"` // pending | used | cancelled
	CancelledDate  *time.Time `json:"cancelledDate,omitempty"`                 // 仅 status = cancelled 时有值
	AutoExpireDate time.Time  `json:"autoExpireDate"`
	CooldownUntil  *time.Time `json:"cooldownUntil,omitempty"` // 服务端写入，本地只读
	CachedAt       time.Time  `gorm:"autoUpdateTime" json:"cachedAt"`
}

func (CachedBooking) TableName() string {
	return "cached_bookings"
}
