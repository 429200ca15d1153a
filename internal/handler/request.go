package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"ele-proxy-go/internal/urlfmt"
)

// sessionCookie names the cookie carrying the caller's upstream user id.
const sessionCookie = "USERID"

// inbound holds what every route reads from the incoming request.
type inbound struct {
	cookie string
	userID string
	query  *urlfmt.Params
}

// dataBody is the JSON body shape of POST routes: {"data": {...}}.
type dataBody struct {
	Data map[string]any `json:"data" validate:"required"`
}

func readInbound(c echo.Context) (*inbound, error) {
	req := c.Request()

	query, err := urlfmt.ParseParams(req.URL.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid query string: %w", err)
	}

	in := &inbound{
		cookie: strings.Join(req.Header.Values("Cookie"), "; "),
		query:  query,
	}
	if ck, err := c.Cookie(sessionCookie); err == nil {
		in.userID = ck.Value
	}
	return in, nil
}

// userPath interpolates the session user id into an upstream path. The id is
// passed through as is; the upstream decides whether it is valid.
func (in *inbound) userPath(prefix, suffix string) string {
	return prefix + url.PathEscape(in.userID) + suffix
}

// readData decodes and validates a {"data": {...}} body. Numbers are kept
// as json.Number so large ids survive the round trip upstream.
func (h *ElemeHandler) readData(c echo.Context) (map[string]any, error) {
	var body dataBody
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("request body is required")
		}
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if err := h.validate.Struct(body); err != nil {
		return nil, errors.New("data is required")
	}
	return body.Data, nil
}

// required returns value, or an error naming the missing field.
func (h *ElemeHandler) required(name, value string) (string, error) {
	if err := h.validate.Var(value, "required"); err != nil {
		return "", fmt.Errorf("%s is required", name)
	}
	return value, nil
}

// scalar renders a decoded JSON scalar as a path segment value.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
