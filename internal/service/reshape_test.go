package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ele-proxy-go/internal/config"
)

const (
	hashA = "3c5dd5a3d1c55b7b7efd1e2a8d0b8e40png"
	urlA  = "https://fuss10.elemecdn.com/3/c5/dd5a3d1c55b7b7efd1e2a8d0b8e40png.png"
	hashB = "b8d6f7bc63a0b0a4f7e23e0ae0e3c76cjpeg"
	urlB  = "https://fuss10.elemecdn.com/b/8d/6f7bc63a0b0a4f7e23e0ae0e3c76cjpeg.jpeg"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func newTestReshaper() *Reshaper {
	return NewReshaper(&config.Config{})
}

func TestReshaper_Orders(t *testing.T) {
	r := newTestReshaper()

	got := r.Orders(decode(t, `[{"id":"1","restaurant_image_hash":"`+hashA+`","total_amount":20}]`))
	require.Len(t, got, 1)

	order := got[0].(map[string]any)
	assert.Equal(t, urlA, order["restaurant_image_path"])
	assert.Equal(t, "1", order["id"])
	assert.Equal(t, float64(20), order["total_amount"])
}

func TestReshaper_Orders_NotAList(t *testing.T) {
	r := newTestReshaper()
	assert.Equal(t, []any{}, r.Orders(decode(t, `{"message":"odd"}`)))
	assert.Equal(t, []any{}, r.Orders(nil))
}

func TestReshaper_Entries(t *testing.T) {
	r := newTestReshaper()

	got := r.Entries(decode(t, `[{"id":1,"entries":[{"name":"美食","image_hash":"`+hashB+`"},{"name":"no image"}]}]`))
	require.Len(t, got, 2)

	first := got[0].(map[string]any)
	assert.Equal(t, "美食", first["name"])
	assert.Equal(t, urlB, first["image_url"])
	assert.Equal(t, "", got[1].(map[string]any)["image_url"])
}

func TestReshaper_Entries_Empty(t *testing.T) {
	r := newTestReshaper()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty list", `[]`},
		{"empty entries", `[{"entries":[]}]`},
		{"missing entries", `[{"id":1}]`},
		{"object payload", `{"entries":[{"image_hash":"x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, []any{}, r.Entries(decode(t, tt.raw)))
		})
	}
}

func TestReshaper_Restaurants(t *testing.T) {
	r := newTestReshaper()

	raw := `{
		"has_next": true,
		"rankId": "abc",
		"items": [
			{"restaurant": {"id": "E1", "name": "Noodles", "image_path": "` + hashA + `",
			                "recommend": {"reason": "hot", "image_hash": "` + hashB + `"}}},
			{"restaurant": {"id": "E2", "image_path": ""}}
		]
	}`
	got := r.Restaurants(decode(t, raw))

	assert.Equal(t, true, got["has_next"])
	assert.Equal(t, "abc", got["rankId"])

	items := got["items"].([]any)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	assert.Equal(t, "E1", first["id"])
	assert.Equal(t, urlA, first["image_url"])
	rec := first["recommend"].(map[string]any)
	assert.Equal(t, "hot", rec["reason"])
	assert.Equal(t, urlB, rec["image_url"])

	second := items[1].(map[string]any)
	assert.Equal(t, "", second["image_url"])
	assert.NotContains(t, second, "recommend")
}

func TestReshaper_Restaurants_EmptyItems(t *testing.T) {
	r := newTestReshaper()

	got := r.Restaurants(decode(t, `{"items":[],"has_next":false}`))
	assert.Equal(t, []any{}, got["items"])
	assert.Equal(t, false, got["has_next"])

	got = r.Restaurants(decode(t, `{"has_next":false}`))
	assert.Equal(t, []any{}, got["items"])
}

func TestReshaper_Restaurants_DoesNotMutateInput(t *testing.T) {
	r := newTestReshaper()
	data := decode(t, `{"items":[{"restaurant":{"image_path":"`+hashA+`"}}]}`)

	r.Restaurants(data)

	inner := data.(map[string]any)["items"].([]any)[0].(map[string]any)["restaurant"].(map[string]any)
	assert.NotContains(t, inner, "image_url")
}

func TestReshaper_SearchRestaurants(t *testing.T) {
	r := newTestReshaper()

	raw := `{"inside":{"0":{"restaurant_with_foods":[{"restaurant":{"id":"E1","image_path":"` + hashA + `"},"foods":[]}]}}}`
	got := r.SearchRestaurants(decode(t, raw))
	require.Len(t, got, 1)
	assert.Equal(t, urlA, got[0].(map[string]any)["image_url"])
}

func TestReshaper_SearchRestaurants_ArrayInside(t *testing.T) {
	r := newTestReshaper()

	raw := `{"inside":[{"restaurant_with_foods":[{"restaurant":{"id":"E9"}}]}]}`
	got := r.SearchRestaurants(decode(t, raw))
	require.Len(t, got, 1)
	assert.Equal(t, "E9", got[0].(map[string]any)["id"])
}

func TestReshaper_SearchRestaurants_MissingPath(t *testing.T) {
	r := newTestReshaper()

	tests := []struct {
		name string
		raw  string
	}{
		{"no inside", `{}`},
		{"inside null", `{"inside":null}`},
		{"no zero key", `{"inside":{"1":{}}}`},
		{"no list", `{"inside":{"0":{}}}`},
		{"list wrong type", `{"inside":{"0":{"restaurant_with_foods":"nope"}}}`},
		{"payload is a list", `[]`},
		{"payload is a string", `"oops"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, []any{}, r.SearchRestaurants(decode(t, tt.raw)))
		})
	}
}

func TestLookup(t *testing.T) {
	data := decode(t, `{"a":[{"b":"x"}]}`)

	assert.Equal(t, "x", lookup(data, "a", "0", "b"))
	assert.Nil(t, lookup(data, "a", "1", "b"))
	assert.Nil(t, lookup(data, "a", "-1"))
	assert.Nil(t, lookup(data, "a", "zero"))
	assert.Nil(t, lookup(data, "a", "0", "b", "c"))
	assert.Equal(t, data, lookup(data))
}
