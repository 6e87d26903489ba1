package push

import (
	"context"
	"encoding/json"
	"errors"
	"keyshop/internal/pkg/config"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/push"
)

// ErrNotConfigured 未配置推送
var ErrNotConfigured = errors.New("push config is missing")

// Message 推送到单个账号，账号即用户 ID
type Message struct {
	Account string
	Title   string
	Body    string
	Extras  map[string]string // 客户端跳转参数
}

type PushService interface {
	Push(ctx context.Context, msg Message) error
}

type AliyunPushService struct {
	client *push.Client
	appKey int64
}

// NewAliyunPushService 配置缺失时返回 ErrNotConfigured，调用方据此跳过推送
func NewAliyunPushService(cfg config.PushConfig) (*AliyunPushService, error) {
	if cfg.AccessKeyID == "" || cfg.AppKey == 0 {
		return nil, ErrNotConfigured
	}

	client, err := push.NewClientWithAccessKey(cfg.RegionID, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, err
	}
	return &AliyunPushService{client: client, appKey: cfg.AppKey}, nil
}

func (s *AliyunPushService) Push(ctx context.Context, msg Message) error {
	// SDK 不接受 ctx，发送前检查一次
	if err := ctx.Err(); err != nil {
		return err
	}

	request := push.CreatePushRequest()
	request.Scheme = "https"
	request.AppKey = requests.NewInteger(int(s.appKey))
	request.Target = "ACCOUNT"
	request.TargetValue = msg.Account
	request.Title = msg.Title
	request.Body = msg.Body
	request.DeviceType = "ALL"
	request.PushType = "NOTICE"
	request.StoreOffline = requests.NewBoolean(true) // 离线用户上线后补发

	if len(msg.Extras) > 0 {
		extJSON, err := json.Marshal(msg.Extras)
		if err != nil {
			return err
		}
		request.AndroidExtParameters = string(extJSON)
		request.IOSExtParameters = string(extJSON)
	}

	_, err := s.client.Push(request)
	return err
}
