package amap

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/poi"
)

// placePageSize is the largest page /v3/place/around accepts.
const placePageSize = 25

// PlacesAround returns the first page of places within radiusM of center,
// nearest first. Entries without a usable location are skipped.
func (c *Client) PlacesAround(ctx context.Context, center geo.Point, radiusM int) ([]poi.Place, error) {
	params := url.Values{}
	params.Set("location", center.LonLat())
	params.Set("radius", strconv.Itoa(radiusM))
	params.Set("sortrule", "distance")
	params.Set("offset", strconv.Itoa(placePageSize))
	params.Set("page", "1")
	params.Set("extensions", "base")

	body, err := c.get(ctx, "places_around", "/v3/place/around", params)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(body); err != nil {
		return nil, err
	}
	var resp placeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("amap: decoding places: %w", err)
	}

	places := make([]poi.Place, 0, len(resp.Pois))
	for _, raw := range resp.Pois {
		var item placeItem
		if err := json.Unmarshal(raw, &item); err != nil {
			c.logger.Debug("skipping undecodable place", "error", err)
			continue
		}
		loc, err := geo.ParseLonLat(string(item.Location))
		if err != nil || item.ID == "" {
			continue
		}
		places = append(places, poi.Place{
			ExternalID: string(item.ID),
			Name:       string(item.Name),
			Address:    string(item.Address),
			Location:   loc,
			Raw:        raw,
		})
	}
	return places, nil
}
