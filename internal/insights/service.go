package insights

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/money"
)

// topSellerLimit caps the leaderboard shown on the insights screen.
const topSellerLimit = 10

const dateLayout = "2006-01-02"

// orderSource is the slice of the ledger the aggregates read.
type orderSource interface {
	OrdersBetween(ctx context.Context, start, end time.Time) ([]models.Order, error)
}

// SellerStat is one product's standing in the top-sellers leaderboard.
// Lines are grouped by name, so a renamed product counts as a new entry.
type SellerStat struct {
	Name    string          `json:"name"`
	Units   decimal.Decimal `json:"units"`
	Revenue decimal.Decimal `json:"revenue"`
}

// DayTotal is one local calendar day's sales.
type DayTotal struct {
	Date   string          `json:"date"`
	Orders int             `json:"orders"`
	Total  decimal.Decimal `json:"total"`
}

// PaymentStat is how one payment method contributed to the range.
type PaymentStat struct {
	Method enums.PaymentMethod `json:"method"`
	Orders int                 `json:"orders"`
	Total  decimal.Decimal     `json:"total"`
}

// Summary aggregates a date range of completed orders.
type Summary struct {
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	OrderCount    int             `json:"orderCount"`
	GrossTotal    decimal.Decimal `json:"grossTotal"`
	DiscountTotal decimal.Decimal `json:"discountTotal"`
	AvgOrderValue decimal.Decimal `json:"avgOrderValue"`
	TopSellers    []SellerStat    `json:"topSellers"`
	DailyTotals   []DayTotal      `json:"dailyTotals"`
	PaymentSplit  []PaymentStat   `json:"paymentSplit"`
}

// Service computes sales insights.
type Service interface {
	Summarize(ctx context.Context, start, end time.Time) (*Summary, error)
}

type service struct {
	orders orderSource
}

// NewService wires the insights service over the order ledger.
func NewService(orders orderSource) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	return &service{orders: orders}, nil
}

func (s *service) Summarize(ctx context.Context, start, end time.Time) (*Summary, error) {
	if end.Before(start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end must not precede start")
	}
	orders, err := s.orders.OrdersBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Start:         start,
		End:           end,
		OrderCount:    len(orders),
		GrossTotal:    decimal.Zero,
		DiscountTotal: decimal.Zero,
		AvgOrderValue: decimal.Zero,
	}

	sellers := map[string]*SellerStat{}
	days := map[string]*DayTotal{}
	payments := map[enums.PaymentMethod]*PaymentStat{}

	for _, order := range orders {
		summary.GrossTotal = summary.GrossTotal.Add(order.Total)
		if order.Discount != nil {
			summary.DiscountTotal = summary.DiscountTotal.Add(order.Discount.Amount)
		}

		day := order.CreatedAt.Local().Format(dateLayout)
		if days[day] == nil {
			days[day] = &DayTotal{Date: day, Total: decimal.Zero}
		}
		days[day].Orders++
		days[day].Total = days[day].Total.Add(order.Total)

		if payments[order.PaymentMethod] == nil {
			payments[order.PaymentMethod] = &PaymentStat{Method: order.PaymentMethod, Total: decimal.Zero}
		}
		payments[order.PaymentMethod].Orders++
		payments[order.PaymentMethod].Total = payments[order.PaymentMethod].Total.Add(order.Total)

		for _, item := range order.Items {
			if sellers[item.Name] == nil {
				sellers[item.Name] = &SellerStat{Name: item.Name, Units: decimal.Zero, Revenue: decimal.Zero}
			}
			sellers[item.Name].Units = sellers[item.Name].Units.Add(item.Quantity)
			sellers[item.Name].Revenue = sellers[item.Name].Revenue.Add(item.LineTotal)
		}
	}

	summary.GrossTotal = money.Round2(summary.GrossTotal)
	summary.DiscountTotal = money.Round2(summary.DiscountTotal)
	if summary.OrderCount > 0 {
		summary.AvgOrderValue = summary.GrossTotal.
			Div(decimal.NewFromInt(int64(summary.OrderCount))).
			Round(2)
	}

	summary.TopSellers = rankSellers(sellers)
	summary.DailyTotals = sortDays(days)
	summary.PaymentSplit = orderPayments(payments)

	return summary, nil
}

func rankSellers(byName map[string]*SellerStat) []SellerStat {
	ranked := make([]SellerStat, 0, len(byName))
	for _, stat := range byName {
		stat.Revenue = money.Round2(stat.Revenue)
		ranked = append(ranked, *stat)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].Revenue.Equal(ranked[j].Revenue) {
			return ranked[i].Revenue.GreaterThan(ranked[j].Revenue)
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > topSellerLimit {
		ranked = ranked[:topSellerLimit]
	}
	return ranked
}

func sortDays(byDay map[string]*DayTotal) []DayTotal {
	days := make([]DayTotal, 0, len(byDay))
	for _, day := range byDay {
		day.Total = money.Round2(day.Total)
		days = append(days, *day)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})
	return days
}

// orderPayments lists methods in register order so the split renders
// consistently even when a method saw no sales.
func orderPayments(byMethod map[enums.PaymentMethod]*PaymentStat) []PaymentStat {
	ordered := []enums.PaymentMethod{
		enums.PaymentMethodCash,
		enums.PaymentMethodCard,
		enums.PaymentMethodVoucher,
	}
	split := make([]PaymentStat, 0, len(ordered))
	for _, method := range ordered {
		if stat, ok := byMethod[method]; ok {
			stat.Total = money.Round2(stat.Total)
			split = append(split, *stat)
			continue
		}
		split = append(split, PaymentStat{Method: method, Total: decimal.Zero})
	}
	return split
}
