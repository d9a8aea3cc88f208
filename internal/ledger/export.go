package ledger

import (
	"context"
	"encoding/csv"
	"io"
	"time"

	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
)

// exportHeader is the column layout for order exports.
var exportHeader = []string{
	"order_id", "date", "payment_method", "item", "unit", "quantity",
	"price", "line_total", "discount", "total",
}

// ExportCSV writes every order in the range as CSV, one row per item.
// Order-level columns only appear on each order's first row so the file
// reads cleanly in a spreadsheet.
func ExportCSV(ctx context.Context, svc Service, w io.Writer, start, end time.Time) error {
	orders, err := svc.OrdersBetween(ctx, start, end)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write export header")
	}
	for _, order := range orders {
		if err := writeOrderRows(writer, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write export rows")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flush export")
	}
	return nil
}

func writeOrderRows(writer *csv.Writer, order models.Order) error {
	discount := ""
	if order.Discount != nil {
		discount = order.Discount.Amount.StringFixed(2)
	}

	if len(order.Items) == 0 {
		return writer.Write([]string{
			order.ID,
			order.CreatedAt.Local().Format(time.RFC3339),
			string(order.PaymentMethod),
			"", "", "", "",
			"",
			discount,
			order.Total.StringFixed(2),
		})
	}

	for i, item := range order.Items {
		row := []string{
			"", "", "",
			item.Name,
			string(item.Unit),
			item.Quantity.String(),
			item.Price.StringFixed(2),
			item.LineTotal.StringFixed(2),
			"", "",
		}
		if i == 0 {
			row[0] = order.ID
			row[1] = order.CreatedAt.Local().Format(time.RFC3339)
			row[2] = string(order.PaymentMethod)
			row[8] = discount
			row[9] = order.Total.StringFixed(2)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}
