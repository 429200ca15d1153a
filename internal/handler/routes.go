package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ele-proxy-go/internal/config"
	"ele-proxy-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, eleme *ElemeHandler, health *HealthHandler, m *metrics.Metrics, cfg *config.Config) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	g := e.Group(cfg.Server.RoutePrefix)

	g.POST("/mobile_send_code", eleme.MobileSendCode)
	g.POST("/login_by_mobile", eleme.LoginByMobile)

	g.GET("/users", eleme.Users)
	g.GET("/address", eleme.Address)
	g.GET("/del_address", eleme.DelAddress)
	g.POST("/add_address", eleme.AddAddress)
	g.POST("/update_address", eleme.UpdateAddress)
	g.GET("/hongbaos", eleme.Hongbaos)
	g.GET("/search_nearby", eleme.SearchNearby)

	g.GET("/orders", eleme.Orders)
	g.GET("/order-snapshot", eleme.OrderSnapshot)
	g.GET("/order-desc", eleme.OrderDesc)

	g.GET("/restaurant_menu", eleme.RestaurantMenu)
	g.GET("/restaurant_ratings", eleme.RestaurantRatings)
	g.GET("/rating_tags", eleme.RatingTags)
	g.GET("/rating_scores", eleme.RatingScores)
	g.GET("/restaurant_byid", eleme.RestaurantByID)

	g.GET("/entry", eleme.Entry)
	g.GET("/banner", eleme.Banner)
	g.GET("/food_sift_factors", eleme.FoodSiftFactors)
	g.GET("/total_category", eleme.TotalCategory)
	g.GET("/filter_attributes", eleme.FilterAttributes)
	g.GET("/restaurants", eleme.Restaurants)
	g.GET("/restaurants_search", eleme.RestaurantsSearch)
	g.GET("/recommendation", eleme.Recommendation)
	g.GET("/hot_keywords", eleme.HotKeywords)
}
