package model

import "time"

// CachedCategory 促销分类的缓存行，不可变引用数据
type CachedCategory struct {
	CategoryID int64  `gorm:"primaryKey;autoIncrement:false" json:"categoryId"`
	Name       string `gorm:"type:varchar(100);not null" json:"name"`
}

func (CachedCategory) TableName() string {
	return "cached_categories"
}

// CachedPromotion 促销的本地缓存行
// IsFavorited / IsReserved 是两个正交的分区标记，远端实体上不存在：
// 同一行可以同时属于收藏分区和预订分区，也可以只属于其中一个
type CachedPromotion struct {
	PromotionID    int64      `gorm:"primaryKey;autoIncrement:false" json:"promotionId"`
	Title          string     `gorm:"type:varchar(200);not null" json:"title"`
	Description    string     `gorm:"type:text" json:"description"`
	ImageURL       string     `gorm:"type:varchar(500)" json:"imageUrl"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        time.Time  `json:"endDate"`
	TotalStock     int        `json:"totalStock"`
	RemainingStock int        `json:"remainingStock"`
	LimitPerUser   int        `json:"limitPerUser"`
	Status         string     `gorm:"type:varchar(32)" json:"status"`
	Theme          string     `gorm:"type:varchar(64)" json:"theme"`
	BusinessName   string     `gorm:"type:varchar(200)" json:"businessName"`
	IsFavorited    bool       `gorm:"index;default:false" json:"isFavorited"`
	IsReserved     bool       `gorm:"index;default:false" json:"isReserved"`
	CachedAt       time.Time  `gorm:"autoUpdateTime" json:"cachedAt"`

	Categories []CachedCategory `gorm:"many2many:cached_promotion_categories;foreignKey:PromotionID;joinForeignKey:PromotionID;references:CategoryID;joinReferences:CategoryID" json:"categories"`
}

func (CachedPromotion) TableName() string {
	return "cached_promotions"
}
