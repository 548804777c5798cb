package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

// DefaultUSDCNY is the fixed exchange rate used when none is configured.
const DefaultUSDCNY = 7.12

// ExchangeRate reports the fixed CNY/USD rate for the caller's currency.
type ExchangeRate struct {
	USDCNY float64
}

// Name implements Tool.
func (ExchangeRate) Name() string { return "exchange-rate-calculator" }

// Description implements Tool.
func (ExchangeRate) Description() string {
	return "获取人民币和美元之间的最新汇率。输入应为你当前的货币，'CNY' 或 'USD'。"
}

// Parameters implements Tool.
func (ExchangeRate) Parameters() jsonschema.Definition {
	def := inputSchema("当前的货币")
	prop := def.Properties["input"]
	prop.Enum = []string{"CNY", "USD"}
	def.Properties["input"] = prop
	return def
}

// Call implements Tool. Currency codes are case-sensitive.
func (e ExchangeRate) Call(_ context.Context, args string) (string, error) {
	rate := e.USDCNY
	if rate <= 0 {
		rate = DefaultUSDCNY
	}
	switch currency := singleInput(args); currency {
	case "CNY":
		return fmt.Sprintf("1 CNY = %.4f USD", 1/rate), nil
	case "USD":
		return "1 USD = " + strconv.FormatFloat(rate, 'f', -1, 64) + " CNY", nil
	default:
		return "", fmt.Errorf("输入格式不正确。请使用 'CNY' 或 'USD'，got %q: %w",
			strings.TrimSpace(currency), domain.ErrInvalidInput)
	}
}
