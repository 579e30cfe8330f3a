package response

// 业务状态码
const (
	CodeSuccess  = 0
	CodeDegraded = 1 // 权威服务不可达，数据来自本地缓存

	// 收藏/预订模块错误 200xx
	ErrPromotionNotFound = 20001
	ErrBookingNotFound   = 20002
	ErrAuthorityFailed   = 20003
	ErrCacheUnavailable  = 20004

	// 认证错误 100xx
	ErrTokenInvalid = 10001
	ErrNoPermission = 10002

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
