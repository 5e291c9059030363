package main

import (
	"math"
	"testing"
)

func TestDestination(t *testing.T) {
	start := Location{Latitude: 0, Longitude: 0}

	north := destination(start, 0, 111195)
	if math.Abs(north.Latitude-1) > 0.001 || math.Abs(north.Longitude) > 1e-9 {
		t.Errorf("north = %+v, want about 1,0", north)
	}

	east := destination(start, 90, 111195)
	if math.Abs(east.Longitude-1) > 0.001 || math.Abs(east.Latitude) > 1e-6 {
		t.Errorf("east = %+v, want about 0,1", east)
	}

	wrapped := destination(Location{Latitude: 0, Longitude: 179.9}, 90, 111195)
	if wrapped.Longitude > -179 || wrapped.Longitude < -180 {
		t.Errorf("antimeridian wrap = %+v", wrapped)
	}
}

func TestWSURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:3001": "ws://localhost:3001/ws",
		"https://bus.example/":  "wss://bus.example/ws",
	}
	for base, want := range tests {
		d := &DriverService{cfg: Config{BaseURL: base}}
		if got := d.wsURL(); got != want {
			t.Errorf("wsURL(%q) = %q, want %q", base, got, want)
		}
	}
}
