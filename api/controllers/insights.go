package controllers

import (
	"net/http"

	"github.com/urbanoasis/farmstand-backend/api/responses"
	"github.com/urbanoasis/farmstand-backend/api/validators"
	insightssvc "github.com/urbanoasis/farmstand-backend/internal/insights"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
)

// AdminInsights summarizes sales over a date range.
func AdminInsights(svc insightssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, err := validators.ParseDateRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summarize(r.Context(), start, end)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
