package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/handlers"
	appmw "github.com/tslagan-sketch/IFT-401-Team-Project/internal/middleware"
)

func NewRoutes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Post("/auth/register", handlers.RegisterHandler)
	r.Post("/auth/login", handlers.LoginHandler)
	r.With(appmw.Authenticated).Get("/auth/me", handlers.MeHandler)
	r.With(appmw.Authenticated).Put("/auth/profile", handlers.UpdateProfileHandler)
	r.With(appmw.Authenticated).Delete("/auth/account", handlers.DeleteAccountHandler)

	r.Get("/market", handlers.MarketHandler)
	r.Get("/market/status", handlers.MarketStatusHandler)
	r.Get("/price_history/{ticker}", handlers.PriceHistoryHandler)

	r.With(appmw.Authenticated).Get("/portfolio", handlers.PortfolioHandler)
	r.With(appmw.Authenticated).Get("/trade/{ticker}", handlers.TradeQuoteHandler)
	r.With(appmw.Authenticated).Post("/order_preview/{ticker}", handlers.OrderPreviewHandler)
	r.With(appmw.Authenticated).Post("/execute_order/{ticker}", handlers.ExecuteOrderHandler)
	r.With(appmw.Authenticated).Get("/order_confirmation/{id}", handlers.OrderConfirmationHandler)
	r.With(appmw.Authenticated).Get("/orders", handlers.ListOrdersHandler)

	r.Route("/admin", func(r chi.Router) {
		r.Use(appmw.Authenticated, appmw.RequireAdmin)

		r.Post("/stocks", handlers.CreateStockHandler)
		r.Delete("/stocks/{ticker}", handlers.DeleteStockHandler)

		r.Post("/users/{id}/funds", handlers.AdjustFundsHandler)
		r.Post("/users/{id}/promote", handlers.PromoteUserHandler)
		r.Delete("/users/{id}", handlers.DeleteUserHandler)

		r.Get("/calendar", handlers.ListCalendarHandler)
		r.Post("/calendar", handlers.CreateCalendarEventHandler)
		r.Delete("/calendar/{id}", handlers.DeleteCalendarEventHandler)

		r.Post("/compress_end_of_day", handlers.CompressEndOfDayHandler)
		r.Post("/simulate_fast_ticks", handlers.SimulateFastTicksHandler)
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	return r
}
