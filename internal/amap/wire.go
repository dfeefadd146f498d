package amap

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"
)

// text decodes AMap string fields, which come back as [] when empty.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || b[0] != '"' {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = text(s)
	return nil
}

// number decodes numeric fields sent either as numbers (v4) or as
// strings (v3). Empty values decode to zero.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || b[0] == '[' || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = number(f)
	return nil
}

type step struct {
	Instruction text   `json:"instruction"`
	Polyline    text   `json:"polyline"`
	Distance    number `json:"distance"`
}

type path struct {
	Distance number `json:"distance"`
	Duration number `json:"duration"`
	Steps    []step `json:"steps"`
}

// directionResponse covers /v3/direction/walking and /v3/direction/driving.
type directionResponse struct {
	status
	Route struct {
		Paths []path `json:"paths"`
	} `json:"route"`
}

// ridingResponse covers /v4/direction/bicycling.
type ridingResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	Data    struct {
		Paths []path `json:"paths"`
	} `json:"data"`
}

type stop struct {
	Name text `json:"name"`
}

type busline struct {
	Name      text   `json:"name"`
	Polyline  text   `json:"polyline"`
	Distance  number `json:"distance"`
	ViaNum    number `json:"via_num"`
	Departure stop   `json:"departure_stop"`
	Arrival   stop   `json:"arrival_stop"`
}

// walkingLeg and busLeg are sent as [] when a segment has no such leg.
type walkingLeg struct {
	Distance number `json:"distance"`
	Steps    []step `json:"steps"`
}

func (w *walkingLeg) UnmarshalJSON(b []byte) error {
	*w = walkingLeg{}
	if !isObject(b) {
		return nil
	}
	type plain walkingLeg
	return json.Unmarshal(b, (*plain)(w))
}

type busLeg struct {
	Buslines []busline `json:"buslines"`
}

func (l *busLeg) UnmarshalJSON(b []byte) error {
	*l = busLeg{}
	if !isObject(b) {
		return nil
	}
	type plain busLeg
	return json.Unmarshal(b, (*plain)(l))
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

type transitSegment struct {
	Walking walkingLeg `json:"walking"`
	Bus     busLeg     `json:"bus"`
}

// transitResponse covers /v3/direction/transit/integrated.
type transitResponse struct {
	status
	Route struct {
		Distance number `json:"distance"`
		Transits []struct {
			Distance number           `json:"distance"`
			Duration number           `json:"duration"`
			Segments []transitSegment `json:"segments"`
		} `json:"transits"`
	} `json:"route"`
}

type geocodeResponse struct {
	status
	Geocodes []struct {
		FormattedAddress text `json:"formatted_address"`
		Location         text `json:"location"`
	} `json:"geocodes"`
}

type placeResponse struct {
	status
	Pois []json.RawMessage `json:"pois"`
}

type placeItem struct {
	ID       text `json:"id"`
	Name     text `json:"name"`
	Address  text `json:"address"`
	Location text `json:"location"`
}
