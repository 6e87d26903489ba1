package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 用户模块错误 100xx
	ErrUserNotFound = 10002
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005

	// 订单与支付 200xx
	ErrNotFound          = 20001
	ErrBusinessRule      = 20002
	ErrDuplicateRequest  = 20003
	ErrPaymentNotEnabled = 20004

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
