package model

import "benefits_gateway/internal/pkg/authority"

// 纯映射函数：远端表示 <-> 缓存表示
// 无网络无存储访问，字段逐一搬运，不做任何本地推算

// PromotionFromAuthority 远端促销 -> 缓存行
// reserved 为该行的预订分区标记；收藏标记由存储层在写入分区时设置
func PromotionFromAuthority(p authority.Promotion, reserved bool) CachedPromotion {
	return CachedPromotion{
		PromotionID:    p.ID,
		Title:          p.Title,
		Description:    p.Description,
		ImageURL:       p.ImageURL,
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		TotalStock:     p.TotalStock,
		RemainingStock: p.RemainingStock,
		LimitPerUser:   p.LimitPerUser,
		Status:         p.Status,
		Theme:          p.Theme,
		BusinessName:   p.BusinessName,
		IsReserved:     reserved,
		Categories:     CategoriesFromAuthority(p.Categories),
	}
}

// PromotionToAuthority 缓存行 -> 远端促销（分区标记不回传）
func PromotionToAuthority(p CachedPromotion) authority.Promotion {
	return authority.Promotion{
		ID:             p.PromotionID,
		Title:          p.Title,
		Description:    p.Description,
		ImageURL:       p.ImageURL,
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		TotalStock:     p.TotalStock,
		RemainingStock: p.RemainingStock,
		LimitPerUser:   p.LimitPerUser,
		Status:         p.Status,
		Theme:          p.Theme,
		BusinessName:   p.BusinessName,
		Categories:     CategoriesToAuthority(p.Categories),
	}
}

// CategoriesFromAuthority 分类列表 -> 缓存行列表
func CategoriesFromAuthority(cats []authority.Category) []CachedCategory {
	if len(cats) == 0 {
		return nil
	}
	out := make([]CachedCategory, len(cats))
	for i, c := range cats {
		out[i] = CachedCategory{CategoryID: c.ID, Name: c.Name}
	}
	return out
}

// CategoriesToAuthority 缓存行列表 -> 分类列表
func CategoriesToAuthority(cats []CachedCategory) []authority.Category {
	if len(cats) == 0 {
		return nil
	}
	out := make([]authority.Category, len(cats))
	for i, c := range cats {
		out[i] = authority.Category{ID: c.CategoryID, Name: c.Name}
	}
	return out
}

// BookingFromAuthority 远端预订 -> 缓存行
// CooldownUntil 原样拷贝，永远不在本地生成或推进
func BookingFromAuthority(b authority.Booking) CachedBooking {
	return CachedBooking{
		BookingID:      b.ID,
		UserID:         b.UserID,
		PromotionID:    b.PromotionID,
		BookingDate:    b.BookingDate,
		LimitUseDate:   b.LimitUseDate,
		Status:         b.Status,
		CancelledDate:  b.CancelledDate,
		AutoExpireDate: b.AutoExpireDate,
		CooldownUntil:  b.CooldownUntil,
	}
}

// BookingToAuthority 缓存行 -> 远端预订
func BookingToAuthority(b CachedBooking) authority.Booking {
	return authority.Booking{
		ID:             b.BookingID,
		UserID:         b.UserID,
		PromotionID:    b.PromotionID,
		BookingDate:    b.BookingDate,
		LimitUseDate:   b.LimitUseDate,
		Status:         b.Status,
		CancelledDate:  b.CancelledDate,
		AutoExpireDate: b.AutoExpireDate,
		CooldownUntil:  b.CooldownUntil,
	}
}

// BookingsFromAuthority 批量映射
func BookingsFromAuthority(bs []authority.Booking) []CachedBooking {
	out := make([]CachedBooking, len(bs))
	for i, b := range bs {
		out[i] = BookingFromAuthority(b)
	}
	return out
}

// BookingsToAuthority 批量映射
func BookingsToAuthority(bs []CachedBooking) []authority.Booking {
	out := make([]authority.Booking, len(bs))
	for i, b := range bs {
		out[i] = BookingToAuthority(b)
	}
	return out
}

// PromotionsFromAuthority 批量映射，所有行使用同一个预订分区标记
func PromotionsFromAuthority(ps []authority.Promotion, reserved bool) []CachedPromotion {
	out := make([]CachedPromotion, len(ps))
	for i, p := range ps {
		out[i] = PromotionFromAuthority(p, reserved)
	}
	return out
}

// PromotionsToAuthority 批量映射
func PromotionsToAuthority(ps []CachedPromotion) []authority.Promotion {
	out := make([]authority.Promotion, len(ps))
	for i, p := range ps {
		out[i] = PromotionToAuthority(p)
	}
	return out
}
