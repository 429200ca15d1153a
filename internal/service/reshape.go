package service

import (
	"strconv"

	"ele-proxy-go/internal/config"
	"ele-proxy-go/internal/urlfmt"
)

// Reshaper augments decoded upstream payloads with derived image URLs.
// Items are open records: every upstream field is kept and derived fields are
// added alongside them.
type Reshaper struct {
	images urlfmt.ImageFormatter
}

// NewReshaper creates a Reshaper using the configured image CDN.
func NewReshaper(cfg *config.Config) *Reshaper {
	return &Reshaper{images: urlfmt.NewImageFormatter(cfg.Image.BaseURL)}
}

// Orders adds restaurant_image_path to every order. A payload that is not a
// list yields an empty list.
func (r *Reshaper) Orders(data any) []any {
	items, _ := data.([]any)
	out := make([]any, 0, len(items))
	for _, item := range items {
		order := cloneObject(item)
		order["restaurant_image_path"] = r.image(order["restaurant_image_hash"])
		out = append(out, order)
	}
	return out
}

// Entries maps data[0].entries, adding image_url to each entry. Missing or
// empty levels yield an empty list.
func (r *Reshaper) Entries(data any) []any {
	entries, _ := lookup(data, "0", "entries").([]any)
	out := make([]any, 0, len(entries))
	for _, item := range entries {
		entry := cloneObject(item)
		entry["image_url"] = r.image(entry["image_hash"])
		out = append(out, entry)
	}
	return out
}

// Restaurants returns the upstream object with its items replaced by the
// unwrapped, image-augmented restaurants.
func (r *Reshaper) Restaurants(data any) map[string]any {
	result := cloneObject(data)
	items, _ := result["items"].([]any)
	result["items"] = r.restaurantList(items)
	return result
}

// SearchRestaurants maps inside["0"].restaurant_with_foods. Any absence or
// type mismatch along that path yields an empty list.
func (r *Reshaper) SearchRestaurants(data any) []any {
	items, _ := lookup(data, "inside", "0", "restaurant_with_foods").([]any)
	return r.restaurantList(items)
}

func (r *Reshaper) restaurantList(items []any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, r.restaurant(item))
	}
	return out
}

// restaurant unwraps {restaurant: {...}} and adds image_url, plus
// recommend.image_url when the restaurant carries a recommend object.
func (r *Reshaper) restaurant(item any) map[string]any {
	wrapper, _ := item.(map[string]any)
	rest := cloneObject(wrapper["restaurant"])
	rest["image_url"] = r.image(rest["image_path"])
	if _, ok := rest["recommend"].(map[string]any); ok {
		rec := cloneObject(rest["recommend"])
		rec["image_url"] = r.image(rec["image_hash"])
		rest["recommend"] = rec
	}
	return rest
}

func (r *Reshaper) image(v any) string {
	hash, _ := v.(string)
	return r.images.Format(hash)
}

// cloneObject returns a shallow copy of v when it is a JSON object, or an
// empty object otherwise.
func cloneObject(v any) map[string]any {
	src, _ := v.(map[string]any)
	out := make(map[string]any, len(src)+1)
	for k, val := range src {
		out[k] = val
	}
	return out
}

// lookup walks a decoded JSON value. Object levels are indexed by key and
// array levels by decimal index. It returns nil as soon as a level is
// missing or of the wrong type.
func lookup(v any, path ...string) any {
	cur := v
	for _, key := range path {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return nil
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			cur = node[i]
		default:
			return nil
		}
	}
	return cur
}
