package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/core/forecast"
)

var loc = forecast.Location{Key: "home", LatitudeDeg: 48.8566, LongitudeDeg: 2.3522}

func TestFetch_MapsResponseFields(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"lat":   r.URL.Query().Get("lat"),
			"lon":   r.URL.Query().Get("lon"),
			"appid": r.URL.Query().Get("appid"),
			"units": r.URL.Query().Get("units"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"main":{"temp":21.5,"humidity":60},"clouds":{"all":75},"dt":1750000000}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL, APIKey: "secret"})
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s, err := c.Fetch(context.Background(), loc, at)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if gotQuery["lat"] != "48.8566" || gotQuery["lon"] != "2.3522" {
		t.Fatalf("coordinates not forwarded: %v", gotQuery)
	}
	if gotQuery["appid"] != "secret" || gotQuery["units"] != "metric" {
		t.Fatalf("credentials or units missing: %v", gotQuery)
	}
	if s.CloudCoverPct != 75 || s.TemperatureC != 21.5 || s.HumidityPct != 60 {
		t.Fatalf("sample fields: %+v", s)
	}
	if !s.Time.Equal(at) {
		t.Fatalf("sample time %v want requested bucket %v", s.Time, at)
	}
	if s.LocationKey != "home" {
		t.Fatalf("location key %s", s.LocationKey)
	}
}

func TestFetch_NonOKStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL, APIKey: "bad"})
	if _, err := c.Fetch(context.Background(), loc, time.Now()); err == nil {
		t.Fatal("expected error on 401 response")
	}
}

func TestFetch_MalformedBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL, APIKey: "k"})
	if _, err := c.Fetch(context.Background(), loc, time.Now()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestConfig_Validate(t *testing.T) {
	var c Config
	c.SetDefaults()
	if err := c.Validate(); err == nil {
		t.Fatal("expected missing api key error")
	}
	c.APIKey = "k"
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
