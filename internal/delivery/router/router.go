package router

import (
	"bazaars/internal/delivery/handler"
	"bazaars/internal/infrastructure/metrics"
	"bazaars/internal/service"
	"bazaars/pkg/logger"

	"github.com/go-chi/chi/v5"
)

func SetupAdRoutes(adRouter *chi.Mux, adService service.AdService, loggers *logger.Loggers, metrics *metrics.HandlerMetrics) {
	adHandler := handler.NewAdHandler(adService, loggers, metrics)

	adRouter.Get("/ads", adHandler.GetAllAds)
	adRouter.Post("/ads", adHandler.CreateAd)

	// Cursor routes are registered before /ads/{id} so "cursor" is not
	// parsed as an ad id.
	adRouter.Post("/ads/cursor", adHandler.OpenCursor)
	adRouter.Get("/ads/cursor/{name}", adHandler.FetchFromCursor)
	adRouter.Delete("/ads/cursor/{name}", adHandler.CloseCursor)

	adRouter.Get("/ads/{id}", adHandler.GetAdByID)
	adRouter.Put("/ads/{id}", adHandler.UpdateAd)
	adRouter.Delete("/ads/{id}", adHandler.DeleteAd)

	adRouter.Get("/images/{id}", adHandler.GetImage)
}
