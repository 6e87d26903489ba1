package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"keyshop/internal/domain/user/model"
	"keyshop/internal/pkg/config"
	"keyshop/pkg/utils"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var httpClient *http.Client

func init() {
	// 优化 HTTP Client 配置
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 2000
	httpClient = &http.Client{
		Transport: t,
		Timeout:   10 * time.Second,
	}
}

type apiResult struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// 压测：大量用户同时使用一个限量优惠码下单，成功数必须等于名额
func main() {
	var (
		baseURL = flag.String("url", "http://localhost:8080", "server base url")
		users   = flag.Int("users", 2000, "concurrent buyers")
		quota   = flag.Int("quota", 50, "promo code usage limit")
	)
	flag.Parse()

	// token 使用服务端同一个 JWT secret 签发
	config.LoadConfig()
	adminToken := mustToken(uuid.NewString(), model.RoleAdmin)

	productID := createProduct(*baseURL, adminToken)
	code := fmt.Sprintf("STRESS%d", time.Now().Unix())
	createPromo(*baseURL, adminToken, code, *quota)

	fmt.Printf("开始压测：%d 个用户抢 %d 个优惠码名额 (code: %s)...\n", *users, *quota, code)

	var wg sync.WaitGroup
	var success, rejected, failed int64
	start := time.Now()

	for i := 0; i < *users; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token := mustToken(uuid.NewString(), model.RoleUser)
			res, status, err := call(http.MethodPost, *baseURL+"/orders", token, map[string]interface{}{
				"items":         []map[string]interface{}{{"productId": productID, "quantity": 1}},
				"paymentMethod": "EXTERNAL",
				"promoCode":     code,
			})
			switch {
			case err != nil || status >= 500:
				atomic.AddInt64(&failed, 1)
			case res.Code == 0:
				atomic.AddInt64(&success, 1)
			default:
				atomic.AddInt64(&rejected, 1)
			}
		}()
	}

	wg.Wait()
	duration := time.Since(start)

	fmt.Println("--------------------------------------------------")
	fmt.Printf("压测结束，耗时: %v\n", duration)
	fmt.Printf("总请求数: %d\n", *users)
	fmt.Printf("QPS: %.2f\n", float64(*users)/duration.Seconds())
	fmt.Printf("下单成功: %d (预期: %d)\n", success, *quota)
	fmt.Printf("名额不足: %d\n", rejected)
	fmt.Printf("请求失败: %d\n", failed)
	fmt.Println("--------------------------------------------------")
	if success != int64(*quota) {
		log.Fatalf("promo usage mismatch: got %d, want %d", success, *quota)
	}
}

func mustToken(userID string, role int) string {
	token, _, err := utils.GenerateToken(userID, role)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	return token
}

func createProduct(baseURL, token string) string {
	res, _, err := call(http.MethodPost, baseURL+"/admin/products", token, map[string]interface{}{
		"name":  "压测专用商品",
		"price": "99.00",
		"stock": -1,
	})
	if err != nil || res.Code != 0 {
		log.Fatalf("create product failed: %v %+v", err, res)
	}
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(res.Data, &p); err != nil {
		log.Fatalf("decode product: %v", err)
	}
	return p.ID
}

func createPromo(baseURL, token, code string, quota int) {
	res, _, err := call(http.MethodPost, baseURL+"/admin/promo-codes", token, map[string]interface{}{
		"code":          code,
		"discountType":  "FIXED",
		"discountValue": "10",
		"usageLimit":    quota,
	})
	if err != nil || res.Code != 0 {
		log.Fatalf("create promo failed: %v %+v", err, res)
	}
}

func call(method, url, token string, payload interface{}) (*apiResult, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	var res apiResult
	if err := json.Unmarshal(respBody, &res); err != nil {
		return nil, resp.StatusCode, err
	}
	return &res, resp.StatusCode, nil
}
