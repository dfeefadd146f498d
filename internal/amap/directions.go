package amap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/route"
)

// Directions returns the first route AMap suggests between origin and
// destination. Either end may be a place name or "lon,lat".
func (c *Client) Directions(ctx context.Context, origin, destination, routeType string) (*route.Directions, error) {
	from, err := c.resolve(ctx, origin)
	if err != nil {
		return nil, fmt.Errorf("resolving origin %q: %w", origin, err)
	}
	to, err := c.resolve(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("resolving destination %q: %w", destination, err)
	}

	params := url.Values{}
	params.Set("origin", from)
	params.Set("destination", to)

	switch routeType {
	case route.TypeDriving:
		return c.pathDirections(ctx, "driving", "/v3/direction/driving", params)
	case route.TypeRiding:
		return c.ridingDirections(ctx, params)
	case route.TypeTransit:
		return c.transitDirections(ctx, params)
	default:
		return c.pathDirections(ctx, "walking", "/v3/direction/walking", params)
	}
}

// Geocode resolves an address within the configured city.
func (c *Client) Geocode(ctx context.Context, address string) (geo.Point, error) {
	params := url.Values{}
	params.Set("address", address)
	if c.city != "" {
		params.Set("city", c.city)
	}

	body, err := c.get(ctx, "geocode", "/v3/geocode/geo", params)
	if err != nil {
		return geo.Point{}, err
	}
	if err := checkStatus(body); err != nil {
		return geo.Point{}, err
	}
	var resp geocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return geo.Point{}, fmt.Errorf("amap: decoding geocode: %w", err)
	}
	if len(resp.Geocodes) == 0 || resp.Geocodes[0].Location == "" {
		return geo.Point{}, ErrNoResult
	}
	return geo.ParseLonLat(string(resp.Geocodes[0].Location))
}

func (c *Client) resolve(ctx context.Context, place string) (string, error) {
	if p, err := geo.ParseLonLat(place); err == nil {
		return p.LonLat(), nil
	}
	p, err := c.Geocode(ctx, place)
	if err != nil {
		return "", err
	}
	return p.LonLat(), nil
}

func (c *Client) pathDirections(ctx context.Context, operation, endpoint string, params url.Values) (*route.Directions, error) {
	body, err := c.get(ctx, operation, endpoint, params)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(body); err != nil {
		return nil, err
	}
	var resp directionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("amap: decoding %s directions: %w", operation, err)
	}
	if len(resp.Route.Paths) == 0 {
		return nil, ErrNoResult
	}
	return fromPath(resp.Route.Paths[0], body), nil
}

func (c *Client) ridingDirections(ctx context.Context, params url.Values) (*route.Directions, error) {
	body, err := c.get(ctx, "riding", "/v4/direction/bicycling", params)
	if err != nil {
		return nil, err
	}
	var resp ridingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("amap: decoding riding directions: %w", err)
	}
	if resp.ErrCode != 0 {
		return nil, &APIError{HTTPStatus: http.StatusOK, Info: resp.ErrMsg, InfoCode: strconv.Itoa(resp.ErrCode)}
	}
	if len(resp.Data.Paths) == 0 {
		return nil, ErrNoResult
	}
	return fromPath(resp.Data.Paths[0], body), nil
}

func (c *Client) transitDirections(ctx context.Context, params url.Values) (*route.Directions, error) {
	if c.city != "" {
		params.Set("city", c.city)
		params.Set("cityd", c.city)
	}
	body, err := c.get(ctx, "transit", "/v3/direction/transit/integrated", params)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(body); err != nil {
		return nil, err
	}
	var resp transitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("amap: decoding transit directions: %w", err)
	}
	if len(resp.Route.Transits) == 0 {
		return nil, ErrNoResult
	}

	tr := resp.Route.Transits[0]
	dir := &route.Directions{
		Provider: ProviderName,
		Distance: float64(tr.Distance),
		Duration: float64(tr.Duration),
		Raw:      body,
	}
	for _, seg := range tr.Segments {
		for _, st := range seg.Walking.Steps {
			dir.Steps = append(dir.Steps, toStep(st))
		}
		if len(seg.Bus.Buslines) > 0 {
			bl := seg.Bus.Buslines[0]
			dir.Steps = append(dir.Steps, route.Step{
				Instruction: fmt.Sprintf("乘坐%s，从%s到%s（%d站）",
					bl.Name, bl.Departure.Name, bl.Arrival.Name, int(bl.ViaNum)+1),
				Polyline: string(bl.Polyline),
				Distance: float64(bl.Distance),
			})
		}
	}
	return dir, nil
}

func fromPath(p path, raw []byte) *route.Directions {
	dir := &route.Directions{
		Provider: ProviderName,
		Distance: float64(p.Distance),
		Duration: float64(p.Duration),
		Steps:    make([]route.Step, 0, len(p.Steps)),
		Raw:      raw,
	}
	for _, st := range p.Steps {
		dir.Steps = append(dir.Steps, toStep(st))
	}
	return dir
}

func toStep(st step) route.Step {
	return route.Step{
		Instruction: string(st.Instruction),
		Polyline:    string(st.Polyline),
		Distance:    float64(st.Distance),
	}
}
