package strategy

import (
	"context"

	"github.com/shopspring/decimal"
)

// SessionRequest 发起支付所需的订单信息
type SessionRequest struct {
	OrderNo string
	Amount  decimal.Decimal
	Subject string
}

// Session 网关返回的支付参数，客户端据此拉起支付
type Session struct {
	Channel  string `json:"channel"`
	OrderNo  string `json:"orderNo"`
	PayParam string `json:"payParam"`
	Ref      string `json:"-"` // 网关侧预支付标识，写入订单 payment_ref
}

// Confirmation 回调或主动查询得到的支付结果
type Confirmation struct {
	OrderNo string
	TradeNo string
	Amount  decimal.Decimal
	Paid    bool
}

type PaymentStrategy interface {
	Channel() string

	// CreateSession 发起支付
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)

	// ParseNotify 验签并解析回调，params 的具体类型由渠道决定
	ParseNotify(ctx context.Context, params interface{}) (*Confirmation, error)

	// Query 主动查询支付结果，用于前端轮询和回调丢失的补偿
	Query(ctx context.Context, orderNo string) (*Confirmation, error)
}
