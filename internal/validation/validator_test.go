package validation

import (
	"strings"
	"testing"
)

type sample struct {
	Title     string  `json:"title" validate:"required,max=10"`
	Role      string  `json:"role" validate:"omitempty,oneof=user assistant system"`
	Lat       float64 `json:"lat" validate:"latitude"`
	Heading   float64 `json:"heading" validate:"heading"`
	Locations string  `json:"locations" validate:"omitempty,stops"`
	Radius    int     `json:"radius" validate:"min=1,max=2000"`
}

func valid() sample {
	return sample{Title: "tour", Lat: 39.9, Heading: 90, Locations: "A--B", Radius: 150}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*sample)
		wantField string
		wantMsg   string
	}{
		{"valid", func(*sample) {}, "", ""},
		{"missing title", func(s *sample) { s.Title = "" }, "title", "title is required"},
		{"title too long", func(s *sample) { s.Title = strings.Repeat("x", 11) }, "title", "at most 10 characters"},
		{"bad role", func(s *sample) { s.Role = "robot" }, "role", "must be one of"},
		{"bad latitude", func(s *sample) { s.Lat = 91 }, "lat", "valid latitude"},
		{"bad heading", func(s *sample) { s.Heading = 361 }, "heading", "between 0 and 360"},
		{"single stop", func(s *sample) { s.Locations = "A-- " }, "locations", "at least two stops"},
		{"radius zero", func(s *sample) { s.Radius = 0 }, "radius", "at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := ValidateStruct(&s)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if err.Code() != CodeValidation {
				t.Errorf("Code() = %q", err.Code())
			}
			if len(err.Fields) != 1 || err.Fields[0].Field != tt.wantField {
				t.Fatalf("Fields = %+v, want single %q", err.Fields, tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want substring %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidateStruct_MultipleErrors(t *testing.T) {
	s := valid()
	s.Title = ""
	s.Radius = 5000
	err := ValidateStruct(&s)
	if err == nil || len(err.Fields) != 2 {
		t.Fatalf("want 2 field errors, got %v", err)
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("Error() should join messages: %q", err.Error())
	}
}

func TestSplitStops(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"A--B--C", []string{"A", "B", "C"}},
		{" 图书馆 -- 食堂 ", []string{"图书馆", "食堂"}},
		{"A----B", []string{"A", "B"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		got := SplitStops(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("SplitStops(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGet_Singleton(t *testing.T) {
	if Get() != Get() {
		t.Error("Get() should return the same instance")
	}
}
