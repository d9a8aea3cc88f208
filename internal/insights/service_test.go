package insights

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
)

type stubOrders struct {
	orders []models.Order
	err    error
}

func (s stubOrders) OrdersBetween(context.Context, time.Time, time.Time) ([]models.Order, error) {
	return s.orders, s.err
}

func order(total string, method enums.PaymentMethod, at time.Time, items ...models.OrderItem) models.Order {
	return models.Order{
		ID:            at.Format(time.RFC3339Nano),
		Total:         decimal.RequireFromString(total),
		PaymentMethod: method,
		CreatedAt:     at,
		Items:         items,
	}
}

func item(name, qty, lineTotal string) models.OrderItem {
	return models.OrderItem{
		Name:      name,
		Quantity:  decimal.RequireFromString(qty),
		LineTotal: decimal.RequireFromString(lineTotal),
	}
}

func TestSummarizeAggregates(t *testing.T) {
	day1 := time.Date(2026, 8, 15, 9, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 8, 16, 11, 0, 0, 0, time.Local)

	source := stubOrders{orders: []models.Order{
		order("10.00", enums.PaymentMethodCash, day1,
			item("Tomatoes", "2", "7.00"),
			item("Corn", "4", "3.00"),
		),
		order("5.00", enums.PaymentMethodCard, day1,
			item("Tomatoes", "1", "3.50"),
			item("Basil", "1", "1.50"),
		),
		order("6.00", enums.PaymentMethodCash, day2,
			item("Corn", "8", "6.00"),
		),
	}}

	svc, err := NewService(source)
	require.NoError(t, err)

	summary, err := svc.Summarize(context.Background(), day1.Add(-time.Hour), day2.Add(time.Hour))
	require.NoError(t, err)

	require.Equal(t, 3, summary.OrderCount)
	require.Equal(t, "21.00", summary.GrossTotal.StringFixed(2))
	require.Equal(t, "7.00", summary.AvgOrderValue.StringFixed(2))

	require.Len(t, summary.TopSellers, 3)
	require.Equal(t, "Tomatoes", summary.TopSellers[0].Name)
	require.Equal(t, "10.50", summary.TopSellers[0].Revenue.StringFixed(2))
	require.Equal(t, "3", summary.TopSellers[0].Units.String())
	require.Equal(t, "Corn", summary.TopSellers[1].Name)
	require.Equal(t, "9.00", summary.TopSellers[1].Revenue.StringFixed(2))

	require.Len(t, summary.DailyTotals, 2)
	require.Equal(t, "2026-08-15", summary.DailyTotals[0].Date)
	require.Equal(t, 2, summary.DailyTotals[0].Orders)
	require.Equal(t, "15.00", summary.DailyTotals[0].Total.StringFixed(2))
	require.Equal(t, "2026-08-16", summary.DailyTotals[1].Date)

	require.Len(t, summary.PaymentSplit, 3)
	require.Equal(t, enums.PaymentMethodCash, summary.PaymentSplit[0].Method)
	require.Equal(t, 2, summary.PaymentSplit[0].Orders)
	require.Equal(t, "16.00", summary.PaymentSplit[0].Total.StringFixed(2))
	// Methods with no sales still appear with zeros.
	require.Equal(t, enums.PaymentMethodVoucher, summary.PaymentSplit[2].Method)
	require.Zero(t, summary.PaymentSplit[2].Orders)
}

func TestSummarizeCountsDiscounts(t *testing.T) {
	at := time.Now()
	discounted := order("9.00", enums.PaymentMethodCash, at, item("Honey", "1", "10.00"))
	discounted.Discount = &models.DiscountSnapshot{
		Type:   enums.DiscountTypeFixed,
		Value:  decimal.NewFromInt(1),
		Amount: decimal.NewFromInt(1),
	}

	svc, err := NewService(stubOrders{orders: []models.Order{discounted}})
	require.NoError(t, err)

	summary, err := svc.Summarize(context.Background(), at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "1.00", summary.DiscountTotal.StringFixed(2))
}

func TestSummarizeEmptyRange(t *testing.T) {
	svc, err := NewService(stubOrders{})
	require.NoError(t, err)

	summary, err := svc.Summarize(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.Zero(t, summary.OrderCount)
	require.Equal(t, "0.00", summary.AvgOrderValue.StringFixed(2))
	require.Empty(t, summary.TopSellers)
	require.Empty(t, summary.DailyTotals)
	require.Len(t, summary.PaymentSplit, 3)
}

func TestSummarizeRejectsInvertedRange(t *testing.T) {
	svc, err := NewService(stubOrders{})
	require.NoError(t, err)

	_, err = svc.Summarize(context.Background(), time.Now(), time.Now().Add(-time.Hour))
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeValidation, coded.Code())
}

func TestTopSellerLimit(t *testing.T) {
	at := time.Now()
	var items []models.OrderItem
	for i := 0; i < topSellerLimit+5; i++ {
		items = append(items, item(string(rune('A'+i)), "1", "1.00"))
	}
	svc, err := NewService(stubOrders{orders: []models.Order{
		order("15.00", enums.PaymentMethodCash, at, items...),
	}})
	require.NoError(t, err)

	summary, err := svc.Summarize(context.Background(), at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, summary.TopSellers, topSellerLimit)
}
