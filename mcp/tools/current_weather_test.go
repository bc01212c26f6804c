package tools

import "testing"

func TestCurrentWeatherRequiresLocation(t *testing.T) {
	if _, err := CurrentWeather(map[string]any{}); err == nil {
		t.Fatalf("expected an error when location is missing")
	}
}

func TestCurrentWeatherRejectsEmptyLocation(t *testing.T) {
	if _, err := CurrentWeather(map[string]any{"location": ""}); err == nil {
		t.Fatalf("expected an error for an empty location")
	}
}

func TestCurrentWeatherRejectsNonStringLocation(t *testing.T) {
	if _, err := CurrentWeather(map[string]any{"location": 42}); err == nil {
		t.Fatalf("expected an error for a non-string location")
	}
}
