package loyalty

import (
	"keyshop/internal/pkg/config"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTierOf(t *testing.T) {
	tests := []struct {
		spend   string
		name    string
		percent int64
	}{
		{"0", "Bronze", 0},
		{"999.99", "Bronze", 0},
		{"1000", "Silver", 3},
		{"4999.99", "Silver", 3},
		{"5000", "Gold", 5},
		{"20000", "Platinum", 8},
		{"49999", "Platinum", 8},
		{"50000", "Diamond", 10},
		{"1000000", "Diamond", 10},
	}

	for _, tt := range tests {
		t.Run(tt.spend, func(t *testing.T) {
			tier := TierOf(decimal.RequireFromString(tt.spend))
			assert.Equal(t, tt.name, tier.Name)
			assert.True(t, decimal.NewFromInt(tt.percent).Equal(tier.Percent))
		})
	}
}

func TestCalculator_Discount(t *testing.T) {
	c := NewCalculator(nil)

	t.Run("基础等级无折扣", func(t *testing.T) {
		assert.True(t, c.Discount(decimal.Zero, decimal.NewFromInt(500)).IsZero())
	})

	t.Run("白银 3%", func(t *testing.T) {
		got := c.Discount(decimal.NewFromInt(1500), decimal.NewFromInt(500))
		assert.True(t, decimal.NewFromInt(15).Equal(got), got.String())
	})

	t.Run("保留两位小数", func(t *testing.T) {
		got := c.Discount(decimal.NewFromInt(5000), decimal.RequireFromString("33.33"))
		assert.Equal(t, "1.67", got.StringFixed(2))
	})

	t.Run("空订单", func(t *testing.T) {
		assert.True(t, c.Discount(decimal.NewFromInt(50000), decimal.Zero).IsZero())
	})
	t.Run("折扣不超过小计", func(t *testing.T) {
		over := NewCalculator([]Tier{
			{Name: "Base", MinSpend: decimal.Zero, Percent: decimal.Zero},
			{Name: "Broken", MinSpend: decimal.NewFromInt(10), Percent: decimal.NewFromInt(150)},
		})
		got := over.Discount(decimal.NewFromInt(10), decimal.RequireFromString("40.00"))
		assert.Equal(t, "40.00", got.StringFixed(2))
	})
}

func TestNewCalculatorFromConfig(t *testing.T) {
	c := NewCalculatorFromConfig([]config.TierConfig{
		{Name: "VIP", MinSpend: 100, Percent: 20},
		{Name: "Basic", MinSpend: 0, Percent: 0},
	})

	assert.Equal(t, "Basic", c.TierOf(decimal.NewFromInt(99)).Name)
	assert.Equal(t, "VIP", c.TierOf(decimal.NewFromInt(100)).Name)
	assert.True(t, decimal.NewFromInt(20).Equal(c.Discount(decimal.NewFromInt(100), decimal.NewFromInt(100))))
	assert.Len(t, c.Tiers(), 2)

	assert.Len(t, NewCalculatorFromConfig(nil).Tiers(), len(DefaultTiers))
}
