package controllers

import (
	"context"
	"net/http"

	"github.com/urbanoasis/farmstand-backend/api/responses"
	"github.com/urbanoasis/farmstand-backend/pkg/config"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
)

// Pinger checks a dependency's reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Farmstand-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports the station database and the remote mirror. The
// mirror being down degrades the report but never fails readiness; the
// register keeps selling without it.
func HealthReady(cfg *config.Config, logg *logger.Logger, database Pinger, remote Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Farmstand-Env", cfg.App.Env)

		report := map[string]string{"status": "ready", "db": "ok", "mirror": "ok"}
		status := http.StatusOK

		if database != nil {
			if err := database.Ping(r.Context()); err != nil {
				report["status"] = "degraded"
				report["db"] = "unreachable"
				status = http.StatusServiceUnavailable
				if logg != nil {
					logg.Error(r.Context(), "database ping failed", err)
				}
			}
		}

		if remote == nil {
			report["mirror"] = "unconfigured"
		} else if err := remote.Ping(r.Context()); err != nil {
			report["mirror"] = "offline"
		}

		responses.WriteSuccessStatus(w, status, report)
	}
}
