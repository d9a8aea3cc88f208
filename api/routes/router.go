package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/urbanoasis/farmstand-backend/api/controllers"
	"github.com/urbanoasis/farmstand-backend/api/middleware"
	authsvc "github.com/urbanoasis/farmstand-backend/internal/auth"
	cartsvc "github.com/urbanoasis/farmstand-backend/internal/cart"
	catalogsvc "github.com/urbanoasis/farmstand-backend/internal/catalog"
	checkoutsvc "github.com/urbanoasis/farmstand-backend/internal/checkout"
	insightssvc "github.com/urbanoasis/farmstand-backend/internal/insights"
	ledgersvc "github.com/urbanoasis/farmstand-backend/internal/ledger"
	settingssvc "github.com/urbanoasis/farmstand-backend/internal/settings"
	"github.com/urbanoasis/farmstand-backend/pkg/config"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
)

// Deps carries everything the router wires into handlers. Remote may be nil
// when no mirror is configured.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Remote   controllers.Pinger
	Registry *prometheus.Registry

	DeviceID uuid.UUID

	Auth     authsvc.Service
	Cart     cartsvc.Service
	Catalog  catalogsvc.Service
	Checkout checkoutsvc.Service
	Ledger   ledgersvc.Service
	Settings settingssvc.Service
	Insights insightssvc.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger
	deviceID := deps.DeviceID

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.UIOrigin),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Remote))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.AuthLogin(deps.Auth, deviceID.String(), logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Auth, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Catalog, logg))
			r.Get("/categories", controllers.ProductCategories(deps.Catalog, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(deps.Cart, deviceID, logg))
			r.Delete("/", controllers.ClearCart(deps.Cart, deviceID, logg))
			r.Post("/items", controllers.AddCartItem(deps.Cart, deviceID, logg))
			r.Put("/items/{itemId}", controllers.UpdateCartItem(deps.Cart, deviceID, logg))
			r.Delete("/items/{itemId}", controllers.RemoveCartItem(deps.Cart, deviceID, logg))
			r.Put("/discount", controllers.ApplyCartDiscount(deps.Cart, deviceID, logg))
			r.Delete("/discount", controllers.RemoveCartDiscount(deps.Cart, deviceID, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.Checkout(deps.Checkout, deviceID, logg))
			r.Post("/undo", controllers.UndoCheckout(deps.Checkout, deviceID, logg))
			r.Get("/status", controllers.CheckoutStatus(deps.Checkout, deviceID))
			r.Get("/receipt", controllers.CheckoutReceipt(deps.Checkout, deviceID, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/today", controllers.TodayOrders(deps.Ledger, logg))
			r.Post("/sync", controllers.SyncOrdersNow(deps.Ledger, logg))
			r.Get("/pending-count", controllers.PendingOrderCount(deps.Ledger, logg))
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", controllers.ListFavorites(deps.Settings, logg))
			r.Delete("/", controllers.ClearFavorites(deps.Settings, logg))
			r.Post("/{productId}", controllers.ToggleFavorite(deps.Settings, logg))
		})

		r.Get("/announcements", controllers.ListAnnouncements(deps.Settings, logg))
		r.Get("/goal", controllers.DailyGoal(deps.Settings, deps.Ledger, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Auth, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Put("/auth/pins", controllers.AdminUpdatePins(deps.Settings, logg))

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateProduct(deps.Catalog, logg))
			r.Delete("/", controllers.AdminClearProducts(deps.Catalog, logg))
			r.Post("/upload", controllers.AdminUploadProductsCSV(deps.Catalog, logg))
			r.Get("/sample-csv", controllers.AdminSampleCSV())
			r.Delete("/{productId}", controllers.AdminDeleteProduct(deps.Catalog, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(deps.Ledger, logg))
			r.Delete("/", controllers.AdminDeleteOrders(deps.Ledger, logg))
			r.Get("/export", controllers.AdminExportOrdersCSV(deps.Ledger, logg))
			r.Delete("/{orderId}", controllers.AdminDeleteOrder(deps.Ledger, logg))
		})

		r.Route("/announcements", func(r chi.Router) {
			r.Post("/", controllers.AdminAddAnnouncement(deps.Settings, logg))
			r.Delete("/", controllers.AdminClearAnnouncements(deps.Settings, logg))
			r.Put("/{announcementId}", controllers.AdminToggleAnnouncement(deps.Settings, logg))
			r.Delete("/{announcementId}", controllers.AdminRemoveAnnouncement(deps.Settings, logg))
		})

		r.Route("/goal", func(r chi.Router) {
			r.Put("/", controllers.AdminSetDailyGoal(deps.Settings, logg))
			r.Delete("/", controllers.AdminClearDailyGoal(deps.Settings, logg))
		})

		r.Get("/insights", controllers.AdminInsights(deps.Insights, logg))
	})

	return r
}
