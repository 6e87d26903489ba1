package strategy

import (
	"context"
	"errors"
	"fmt"
	"keyshop/internal/domain/order/model"
	"keyshop/internal/pkg/config"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/smartwalle/alipay/v3"
)

type AlipayStrategy struct {
	client *alipay.Client
	config config.AlipayConfig
}

func NewAlipayStrategy(cfg config.AlipayConfig) (*AlipayStrategy, error) {
	if cfg.AppID == "" {
		return nil, errors.New("alipay config missing")
	}

	client, err := alipay.New(cfg.AppID, cfg.PrivateKey, cfg.IsProduction)
	if err != nil {
		return nil, err
	}

	// 支付宝公钥，用于回调验签
	if err = client.LoadAliPayPublicKey(cfg.PublicKey); err != nil {
		return nil, err
	}

	return &AlipayStrategy{
		client: client,
		config: cfg,
	}, nil
}

func (s *AlipayStrategy) Channel() string { return model.ChannelAlipay }

// CreateSession App 支付，返回签名后的参数串
func (s *AlipayStrategy) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	p := alipay.TradeAppPay{}
	p.NotifyURL = s.config.NotifyURL
	p.Subject = req.Subject
	p.OutTradeNo = req.OrderNo
	p.TotalAmount = req.Amount.StringFixed(2)
	p.ProductCode = "QUICK_MSECURITY_PAY"

	param, err := s.client.TradeAppPay(p)
	if err != nil {
		return nil, fmt.Errorf("alipay app pay: %w", err)
	}
	return &Session{
		Channel:  model.ChannelAlipay,
		OrderNo:  req.OrderNo,
		PayParam: param,
		Ref:      req.OrderNo,
	}, nil
}

// ParseNotify params 为回调表单 url.Values
func (s *AlipayStrategy) ParseNotify(ctx context.Context, params interface{}) (*Confirmation, error) {
	values, ok := params.(url.Values)
	if !ok {
		return nil, errors.New("invalid params type, expected url.Values")
	}

	noti, err := s.client.DecodeNotification(values)
	if err != nil {
		return nil, fmt.Errorf("alipay notification: %w", err)
	}

	amount, err := decimal.NewFromString(noti.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("alipay amount %q: %w", noti.TotalAmount, err)
	}
	return &Confirmation{
		OrderNo: noti.OutTradeNo,
		TradeNo: noti.TradeNo,
		Amount:  amount,
		Paid:    tradePaid(noti.TradeStatus),
	}, nil
}

func (s *AlipayStrategy) Query(ctx context.Context, orderNo string) (*Confirmation, error) {
	rsp, err := s.client.TradeQuery(alipay.TradeQuery{OutTradeNo: orderNo})
	if err != nil {
		return nil, fmt.Errorf("alipay trade query: %w", err)
	}
	if rsp.IsFailure() {
		// 用户尚未扫码时交易不存在
		if rsp.SubCode == "ACQ.TRADE_NOT_EXIST" {
			return &Confirmation{OrderNo: orderNo}, nil
		}
		return nil, fmt.Errorf("alipay trade query: %s %s", rsp.Msg, rsp.SubMsg)
	}

	amount, err := decimal.NewFromString(rsp.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("alipay amount %q: %w", rsp.TotalAmount, err)
	}
	return &Confirmation{
		OrderNo: rsp.OutTradeNo,
		TradeNo: rsp.TradeNo,
		Amount:  amount,
		Paid:    tradePaid(rsp.TradeStatus),
	}, nil
}

// TRADE_SUCCESS 或 TRADE_FINISHED 表示成功
func tradePaid(status alipay.TradeStatus) bool {
	return status == alipay.TradeStatusSuccess || status == alipay.TradeStatusFinished
}

var _ PaymentStrategy = (*AlipayStrategy)(nil)
