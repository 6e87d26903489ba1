package strategy

import (
	"context"
	"errors"
	"fmt"
	"keyshop/internal/domain/order/model"
	"keyshop/internal/pkg/config"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/verifiers"
	"github.com/wechatpay-apiv3/wechatpay-go/core/downloader"
	"github.com/wechatpay-apiv3/wechatpay-go/core/notify"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/app"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

const wechatTradeSuccess = "SUCCESS"

type WechatStrategy struct {
	client  *core.Client
	config  config.WechatPayConfig
	handler *notify.Handler
}

func NewWechatStrategy(ctx context.Context, cfg config.WechatPayConfig) (*WechatStrategy, error) {
	if cfg.MchID == "" {
		return nil, errors.New("wechat pay config missing")
	}

	mchPrivateKey, err := utils.LoadPrivateKey(cfg.MchPrivateKey)
	if err != nil {
		return nil, err
	}

	// 自动下载并定期更新平台证书
	client, err := core.NewClient(ctx,
		option.WithWechatPayAutoAuthCipher(cfg.MchID, cfg.MchCertificateSerial, mchPrivateKey, cfg.APIv3Key),
	)
	if err != nil {
		return nil, err
	}

	certVisitor := downloader.MgrInstance().GetCertificateVisitor(cfg.MchID)
	handler := notify.NewNotifyHandler(cfg.APIv3Key, verifiers.NewSHA256WithRSAVerifier(certVisitor))

	return &WechatStrategy{
		client:  client,
		config:  cfg,
		handler: handler,
	}, nil
}

func (s *WechatStrategy) Channel() string { return model.ChannelWechat }

func (s *WechatStrategy) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	svc := app.AppApiService{Client: s.client}
	resp, _, err := svc.Prepay(ctx, app.PrepayRequest{
		Appid:       core.String(s.config.AppID),
		Mchid:       core.String(s.config.MchID),
		Description: core.String(req.Subject),
		OutTradeNo:  core.String(req.OrderNo),
		NotifyUrl:   core.String(s.config.NotifyURL),
		Amount: &app.Amount{
			Total: core.Int64(toFen(req.Amount)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wechat prepay: %w", err)
	}

	return &Session{
		Channel:  model.ChannelWechat,
		OrderNo:  req.OrderNo,
		PayParam: *resp.PrepayId,
		Ref:      *resp.PrepayId,
	}, nil
}

// ParseNotify params 为原始 *http.Request，验签需要请求头
func (s *WechatStrategy) ParseNotify(ctx context.Context, params interface{}) (*Confirmation, error) {
	req, ok := params.(*http.Request)
	if !ok {
		return nil, errors.New("invalid params type, expected *http.Request")
	}

	transaction := new(payments.Transaction)
	if _, err := s.handler.ParseNotifyRequest(ctx, req, transaction); err != nil {
		return nil, fmt.Errorf("wechat notification: %w", err)
	}
	return confirmationOf(transaction), nil
}

func (s *WechatStrategy) Query(ctx context.Context, orderNo string) (*Confirmation, error) {
	svc := app.AppApiService{Client: s.client}
	transaction, _, err := svc.QueryOrderByOutTradeNo(ctx, app.QueryOrderByOutTradeNoRequest{
		OutTradeNo: core.String(orderNo),
		Mchid:      core.String(s.config.MchID),
	})
	if err != nil {
		return nil, fmt.Errorf("wechat query order: %w", err)
	}
	return confirmationOf(transaction), nil
}

func confirmationOf(t *payments.Transaction) *Confirmation {
	c := &Confirmation{}
	if t.OutTradeNo != nil {
		c.OrderNo = *t.OutTradeNo
	}
	if t.TransactionId != nil {
		c.TradeNo = *t.TransactionId
	}
	if t.Amount != nil && t.Amount.Total != nil {
		c.Amount = fromFen(*t.Amount.Total)
	}
	c.Paid = t.TradeState != nil && *t.TradeState == wechatTradeSuccess
	return c
}

// 微信金额单位为分
func toFen(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromFen(fen int64) decimal.Decimal {
	return decimal.New(fen, -2)
}

var _ PaymentStrategy = (*WechatStrategy)(nil)
