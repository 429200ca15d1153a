package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"ele-proxy-go/internal/metrics"
	"ele-proxy-go/internal/model"
	"ele-proxy-go/internal/service"
	"ele-proxy-go/internal/urlfmt"
)

// Query fields forwarded by the restaurant list routes.
var (
	restaurantListFields = []string{
		"latitude", "longitude", "limit", "offset", "terminal",
		"rank_id", "extra_filters", "order_by", "super_vip", "keywords",
	}
	restaurantSearchFields = []string{
		"latitude", "longitude", "limit", "offset", "terminal",
		"rank_id", "extra_filters", "order_by", "super_vip", "search_item_type",
	}
	ratingFields        = []string{"has_content", "offset", "limit"}
	restaurantByIDField = []string{"latitude", "longitude", "terminal"}

	// multiValuedFilters are serialized as repeated key[]=value pairs.
	multiValuedFilters = []string{
		"delivery_mode", "extras", "restaurant_category_ids",
		"activity_types", "average_cost_ids", "support_ids",
	}
)

// buildFunc turns the inbound request into one upstream call.
type buildFunc func(c echo.Context, in *inbound) (*model.UpstreamRequest, error)

// shapeFunc turns a 2xx upstream response into the envelope result.
type shapeFunc func(c echo.Context, resp *model.UpstreamResponse) (any, error)

// ElemeHandler serves the adapter routes. Every route answers HTTP 200 with
// a {result, code: 0} or {errmsg, code: 1} envelope.
type ElemeHandler struct {
	forwarder *service.Forwarder
	reshaper  *service.Reshaper
	cookies   *service.CookieRewriter
	metrics   *metrics.Metrics
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewElemeHandler creates an ElemeHandler. The metrics parameter is optional.
func NewElemeHandler(
	f *service.Forwarder,
	r *service.Reshaper,
	cr *service.CookieRewriter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ElemeHandler {
	return &ElemeHandler{
		forwarder: f,
		reshaper:  r,
		cookies:   cr,
		metrics:   m,
		validate:  newValidator(),
		logger:    logger.With("component", "eleme_handler"),
	}
}

// proxy runs extract -> forward -> reshape and writes the envelope. Every
// error on the way is reported in-band.
func (h *ElemeHandler) proxy(c echo.Context, build buildFunc, shape shapeFunc) error {
	in, err := readInbound(c)
	if err != nil {
		return h.fail(c, err)
	}
	req, err := build(c, in)
	if err != nil {
		return h.fail(c, err)
	}
	if req.Cookie == "" {
		req.Cookie = in.cookie
	}

	resp, err := h.forwarder.Forward(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}

	result, err := shape(c, resp)
	if err != nil {
		return h.fail(c, err)
	}
	return h.write(c, model.OK(result))
}

func (h *ElemeHandler) fail(c echo.Context, err error) error {
	h.logger.Warn("route failed",
		"route", c.Path(),
		"err", err,
	)
	return h.write(c, model.Fail(service.ErrorMessage(err)))
}

func (h *ElemeHandler) write(c echo.Context, env model.Envelope) error {
	if h.metrics != nil {
		h.metrics.EnvelopesTotal.WithLabelValues(metrics.NormalizeRoute(c.Path()), strconv.Itoa(env.Code)).Inc()
	}
	return c.JSON(http.StatusOK, env)
}

// Shapes.

func passThrough(_ echo.Context, resp *model.UpstreamResponse) (any, error) {
	return resp.Result(), nil
}

func acknowledge(echo.Context, *model.UpstreamResponse) (any, error) {
	return true, nil
}

func decoded[T any](fn func(any) T) shapeFunc {
	return func(_ echo.Context, resp *model.UpstreamResponse) (any, error) {
		data, err := resp.Decode()
		if err != nil {
			return nil, err
		}
		return fn(data), nil
	}
}

// Builders.

func get(path string) buildFunc {
	return func(echo.Context, *inbound) (*model.UpstreamRequest, error) {
		return &model.UpstreamRequest{Method: http.MethodGet, Path: path}, nil
	}
}

// getWithQuery re-serializes every inbound query field into path's query string.
func getWithQuery(path string) buildFunc {
	return func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		return &model.UpstreamRequest{
			Method: http.MethodGet,
			Path:   urlfmt.WithQuery(path, urlfmt.QueryString(in.query)),
		}, nil
	}
}

func (h *ElemeHandler) postData(method, path string) buildFunc {
	return func(c echo.Context, _ *inbound) (*model.UpstreamRequest, error) {
		data, err := h.readData(c)
		if err != nil {
			return nil, err
		}
		return &model.UpstreamRequest{Method: method, Path: path, Body: data}, nil
	}
}

func arrayFilters(q *urlfmt.Params) string {
	parts := make([]string, 0, len(multiValuedFilters))
	for _, key := range multiValuedFilters {
		parts = append(parts, urlfmt.ArrayQuery(q.Values(key), key))
	}
	return urlfmt.JoinQuery(parts...)
}

// Login.

// MobileSendCode requests an SMS verification code.
func (h *ElemeHandler) MobileSendCode(c echo.Context) error {
	return h.proxy(c, h.postData(http.MethodPost, "/eus/login/mobile_send_code"), passThrough)
}

// LoginByMobile logs in with an SMS code and re-emits the upstream session
// cookies scoped to the proxy's domain.
func (h *ElemeHandler) LoginByMobile(c echo.Context) error {
	return h.proxy(c, h.postData(http.MethodPost, "/eus/login/login_by_mobile"),
		func(c echo.Context, resp *model.UpstreamResponse) (any, error) {
			for _, ck := range h.cookies.Rewrite(resp.Header.Values("Set-Cookie")) {
				c.Response().Header().Add("Set-Cookie", ck)
			}
			return resp.Result(), nil
		})
}

// User and addresses.

// Users returns the session user's profile.
func (h *ElemeHandler) Users(c echo.Context) error {
	return h.proxy(c, func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		return get(in.userPath("/eus/v1/users/", ""))(c, in)
	}, passThrough)
}

// Address lists the session user's delivery addresses.
func (h *ElemeHandler) Address(c echo.Context) error {
	return h.proxy(c, func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		return get(in.userPath("/member/v1/users/", "/addresses"))(c, in)
	}, passThrough)
}

// DelAddress deletes the address named by the id query field.
func (h *ElemeHandler) DelAddress(c echo.Context) error {
	return h.proxy(c, func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		id, err := h.required("id", in.query.Get("id"))
		if err != nil {
			return nil, err
		}
		return &model.UpstreamRequest{
			Method: http.MethodDelete,
			Path:   in.userPath("/member/v1/users/", "/addresses/"+url.PathEscape(id)),
		}, nil
	}, acknowledge)
}

// AddAddress creates an address from the request data.
func (h *ElemeHandler) AddAddress(c echo.Context) error {
	return h.proxy(c, func(c echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		return h.postData(http.MethodPost, in.userPath("/member/v1/users/", "/addresses"))(c, in)
	}, acknowledge)
}

// UpdateAddress replaces the address identified by data.id.
func (h *ElemeHandler) UpdateAddress(c echo.Context) error {
	return h.proxy(c, func(c echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		data, err := h.readData(c)
		if err != nil {
			return nil, err
		}
		id, err := h.required("data.id", scalar(data["id"]))
		if err != nil {
			return nil, err
		}
		return &model.UpstreamRequest{
			Method: http.MethodPut,
			Path:   in.userPath("/member/v1/users/", "/addresses/"+url.PathEscape(id)),
			Body:   data,
		}, nil
	}, acknowledge)
}

// Hongbaos lists the session user's red packets; the inbound query is passed
// as separate parameters.
func (h *ElemeHandler) Hongbaos(c echo.Context) error {
	return h.proxy(c, func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		return &model.UpstreamRequest{
			Method: http.MethodGet,
			Path:   in.userPath("/promotion/v3/users/", "/hongbaos"),
			Query:  in.query,
		}, nil
	}, passThrough)
}

// SearchNearby searches points of interest around a coordinate.
func (h *ElemeHandler) SearchNearby(c echo.Context) error {
	return h.proxy(c, func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		return &model.UpstreamRequest{
			Method: http.MethodGet,
			Path:   "/bgs/poi/search_poi_nearby",
			Query:  in.query,
		}, nil
	}, passThrough)
}

// Orders.

// Orders lists the session user's orders with restaurant image URLs.
func (h *ElemeHandler) Orders(c echo.Context) error {
	return h.proxy(c, func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		return getWithQuery(in.userPath("/bos/v2/users/", "/orders"))(c, in)
	}, decoded(h.reshaper.Orders))
}

// OrderSnapshot returns the snapshot of one order.
func (h *ElemeHandler) OrderSnapshot(c echo.Context) error {
	return h.proxy(c, h.orderPath("/bos/v1/users/", "/snapshot"), passThrough)
}

// OrderDesc returns the delivery details of one order.
func (h *ElemeHandler) OrderDesc(c echo.Context) error {
	return h.proxy(c, h.orderPath("/bos/v2/users/", "/distribution"), passThrough)
}

func (h *ElemeHandler) orderPath(prefix, suffix string) buildFunc {
	return func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		id, err := h.required("id", in.query.Get("id"))
		if err != nil {
			return nil, err
		}
		return &model.UpstreamRequest{
			Method: http.MethodGet,
			Path:   in.userPath(prefix, "/orders/"+url.PathEscape(id)+suffix),
		}, nil
	}
}

// Restaurants.

// RestaurantMenu returns a restaurant's menu.
func (h *ElemeHandler) RestaurantMenu(c echo.Context) error {
	return h.proxy(c, getWithQuery("/shopping/v2/menu"), passThrough)
}

// RestaurantRatings returns ratings filtered by has_content/offset/limit and,
// when given, tag_name.
func (h *ElemeHandler) RestaurantRatings(c echo.Context) error {
	return h.proxy(c, func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		path, err := h.restaurantPath(in, "/ugc/v3/restaurants/", "/ratings")
		if err != nil {
			return nil, err
		}
		query := urlfmt.QueryString(in.query.Pick(ratingFields...))
		if tag := in.query.Get("tag_name"); tag != "" {
			query = urlfmt.JoinQuery(query, "tag_name="+urlfmt.EncodeComponent(tag))
		}
		return &model.UpstreamRequest{Method: http.MethodGet, Path: urlfmt.WithQuery(path, query)}, nil
	}, passThrough)
}

// RatingTags returns a restaurant's rating tags.
func (h *ElemeHandler) RatingTags(c echo.Context) error {
	return h.proxy(c, h.restaurantGet("/ugc/v2/restaurants/", "/ratings/tags"), passThrough)
}

// RatingScores returns a restaurant's rating scores.
func (h *ElemeHandler) RatingScores(c echo.Context) error {
	return h.proxy(c, h.restaurantGet("/ugc/v2/restaurants/", "/ratings/scores"), passThrough)
}

// RestaurantByID returns one restaurant.
func (h *ElemeHandler) RestaurantByID(c echo.Context) error {
	return h.proxy(c, func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		path, err := h.restaurantPath(in, "/shopping/restaurant/", "")
		if err != nil {
			return nil, err
		}
		query := urlfmt.JoinQuery(
			urlfmt.QueryString(in.query.Pick(restaurantByIDField...)),
			urlfmt.ArrayQuery(in.query.Values("extras"), "extras"),
		)
		return &model.UpstreamRequest{Method: http.MethodGet, Path: urlfmt.WithQuery(path, query)}, nil
	}, passThrough)
}

func (h *ElemeHandler) restaurantPath(in *inbound, prefix, suffix string) (string, error) {
	id, err := h.required("restaurant_id", in.query.Get("restaurant_id"))
	if err != nil {
		return "", err
	}
	return prefix + url.PathEscape(id) + suffix, nil
}

func (h *ElemeHandler) restaurantGet(prefix, suffix string) buildFunc {
	return func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		path, err := h.restaurantPath(in, prefix, suffix)
		if err != nil {
			return nil, err
		}
		return &model.UpstreamRequest{Method: http.MethodGet, Path: path}, nil
	}
}

// Restaurants lists restaurants and unwraps each item.
func (h *ElemeHandler) Restaurants(c echo.Context) error {
	return h.proxy(c, func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		query := urlfmt.JoinQuery(
			urlfmt.QueryString(in.query.Pick(restaurantListFields...)),
			arrayFilters(in.query),
		)
		return &model.UpstreamRequest{
			Method: http.MethodGet,
			Path:   urlfmt.WithQuery("/shopping/v3/restaurants", query),
		}, nil
	}, decoded(h.reshaper.Restaurants))
}

// RestaurantsSearch searches restaurants by keyword.
func (h *ElemeHandler) RestaurantsSearch(c echo.Context) error {
	return h.proxy(c, func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		var keyword string
		if in.query.Has("keyword") {
			keyword = "keyword=" + urlfmt.EncodeComponent(in.query.Get("keyword"))
		}
		query := urlfmt.JoinQuery(
			urlfmt.QueryString(in.query.Pick(restaurantSearchFields...)),
			keyword,
			arrayFilters(in.query),
		)
		return &model.UpstreamRequest{
			Method: http.MethodGet,
			Path:   urlfmt.WithQuery("/shopping/v2/restaurants/search", query),
		}, nil
	}, decoded(h.reshaper.SearchRestaurants))
}

// Home page.

// Entry returns the home page entry menu.
func (h *ElemeHandler) Entry(c echo.Context) error {
	return h.proxy(c, h.entries("/shopping/openapi/entries", "main_template"), decoded(h.reshaper.Entries))
}

// Banner returns the promotion banner entries.
func (h *ElemeHandler) Banner(c echo.Context) error {
	return h.proxy(c, h.entries("/shopping/v2/entries", "big_sale_promotion_template"), decoded(h.reshaper.Entries))
}

func (h *ElemeHandler) entries(path, template string) buildFunc {
	return func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		query := urlfmt.JoinQuery(urlfmt.QueryString(in.query), "templates[]="+template)
		return &model.UpstreamRequest{Method: http.MethodGet, Path: urlfmt.WithQuery(path, query)}, nil
	}
}

// FoodSiftFactors returns the filter types for an entry.
func (h *ElemeHandler) FoodSiftFactors(c echo.Context) error {
	return h.proxy(c, getWithQuery("/shopping/v2/foods_page/sift_factors"), passThrough)
}

// TotalCategory returns every restaurant category.
func (h *ElemeHandler) TotalCategory(c echo.Context) error {
	return h.proxy(c, getWithQuery("/shopping/v2/restaurant/category"), passThrough)
}

// FilterAttributes returns the filter bar attributes.
func (h *ElemeHandler) FilterAttributes(c echo.Context) error {
	return h.proxy(c, getWithQuery("/shopping/v1/restaurants/filter-bar/attributes"), passThrough)
}

// Recommendation returns recommended restaurants for the session user.
func (h *ElemeHandler) Recommendation(c echo.Context) error {
	return h.proxy(c, func(_ echo.Context, in *inbound) (*model.UpstreamRequest, error) {
		query := in.query.Clone()
		query.Set("user_id", in.userID)
		return &model.UpstreamRequest{
			Method: http.MethodGet,
			Path:   "/shopping/v1/find/recommendation",
			Query:  query,
		}, nil
	}, passThrough)
}

// HotKeywords returns trending search words.
func (h *ElemeHandler) HotKeywords(c echo.Context) error {
	return h.proxy(c, getWithQuery("/shopping/v3/hot_search_words"), passThrough)
}
