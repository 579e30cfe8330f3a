package authority

import "time"

// 预订状态，由权威服务定义
const (
	BookingStatusPending   = "pending"
	BookingStatusUsed      = "used"
	BookingStatusCancelled = "cancelled"
)

// Category 促销分类，只读引用数据
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Promotion 权威服务侧的促销表示
type Promotion struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	ImageURL       string     `json:"imageUrl"` // 只携带引用，不回传图片字节
	StartDate      time.Time  `json:"startDate"`
	EndDate        time.Time  `json:"endDate"`
	TotalStock     int        `json:"totalStock"`
	RemainingStock int        `json:"remainingStock"`
	LimitPerUser   int        `json:"limitPerUser"`
	Status         string     `json:"status"`
	Theme          string     `json:"theme"`
	BusinessName   string     `json:"businessName"`
	Categories     []Category `json:"categories"`
}

// Booking 权威服务侧的预订表示
// CooldownUntil 由服务端在取消时写入，客户端永远不会本地推算
type Booking struct {
	ID             int64      `json:"id"`
	UserID         string     `json:"userId"`
	PromotionID    int64      `json:"promotionId"`
	BookingDate    time.Time  `json:"bookingDate"`
	LimitUseDate   time.Time  `json:"limitUseDate"`
	Status         string     `json:"status"` // pending | used | cancelled
	CancelledDate  *time.Time `json:"cancelledDate,omitempty"`
	AutoExpireDate time.Time  `json:"autoExpireDate"`
	CooldownUntil  *time.Time `json:"cooldownUntil,omitempty"`
}
