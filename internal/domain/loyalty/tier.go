// Package loyalty 会员等级与等级折扣计算，纯函数无状态。
package loyalty

import (
	"keyshop/internal/pkg/config"
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Tier 等级断点：累计消费 >= MinSpend 即可享受 Percent 折扣
type Tier struct {
	Name     string          `json:"name"`
	MinSpend decimal.Decimal `json:"minSpend"`
	Percent  decimal.Decimal `json:"percent"`
}

// DefaultTiers 默认等级表
var DefaultTiers = []Tier{
	{Name: "Bronze", MinSpend: decimal.Zero, Percent: decimal.Zero},
	{Name: "Silver", MinSpend: decimal.NewFromInt(1000), Percent: decimal.NewFromInt(3)},
	{Name: "Gold", MinSpend: decimal.NewFromInt(5000), Percent: decimal.NewFromInt(5)},
	{Name: "Platinum", MinSpend: decimal.NewFromInt(20000), Percent: decimal.NewFromInt(8)},
	{Name: "Diamond", MinSpend: decimal.NewFromInt(50000), Percent: decimal.NewFromInt(10)},
}

// Calculator 按升序断点计算等级
type Calculator struct {
	tiers []Tier
}

// NewCalculator tiers 为空时使用默认等级表
func NewCalculator(tiers []Tier) *Calculator {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinSpend.LessThan(sorted[j].MinSpend)
	})
	return &Calculator{tiers: sorted}
}

// NewCalculatorFromConfig 读取 shop.tiers 配置
func NewCalculatorFromConfig(cfg []config.TierConfig) *Calculator {
	tiers := make([]Tier, 0, len(cfg))
	for _, c := range cfg {
		tiers = append(tiers, Tier{
			Name:     c.Name,
			MinSpend: decimal.NewFromFloat(c.MinSpend),
			Percent:  decimal.NewFromFloat(c.Percent),
		})
	}
	return NewCalculator(tiers)
}

// TierOf 取不超过 spend 的最高断点；低于所有断点时返回 0% 的基础等级
func (c *Calculator) TierOf(spend decimal.Decimal) Tier {
	current := Tier{Name: c.tiers[0].Name, MinSpend: c.tiers[0].MinSpend, Percent: decimal.Zero}
	if spend.GreaterThanOrEqual(c.tiers[0].MinSpend) {
		current = c.tiers[0]
	}
	for _, t := range c.tiers[1:] {
		if spend.LessThan(t.MinSpend) {
			break
		}
		current = t
	}
	return current
}

// Discount = subtotal * percent / 100，保留两位小数，不超过 subtotal
func (c *Calculator) Discount(spend, subtotal decimal.Decimal) decimal.Decimal {
	tier := c.TierOf(spend)
	if !tier.Percent.IsPositive() || !subtotal.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(subtotal.Mul(tier.Percent).Div(hundred).Round(2), subtotal)
}

// Tiers 返回等级表副本
func (c *Calculator) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

var defaultCalculator = NewCalculator(nil)

// TierOf 使用默认等级表
func TierOf(spend decimal.Decimal) Tier {
	return defaultCalculator.TierOf(spend)
}
