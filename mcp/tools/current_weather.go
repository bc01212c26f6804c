package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// CurrentWeatherName is the canonical name of the weather tool.
const CurrentWeatherName = "get_weather"

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

type openMeteoResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		Precipitation float64 `json:"precipitation"`
	} `json:"current"`
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

// CurrentWeatherDefinition describes the weather tool for discovery.
func CurrentWeatherDefinition() Definition {
	return Definition{
		Name: CurrentWeatherName,
		Description: "Provides current weather conditions for a specific geographical location. " +
			"Use for queries about temperature, precipitation, or wind. Not for queries about time.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "The city and state or city and country, e.g. 'Portland, OR' or 'London, UK'.",
				},
			},
			"required": []string{"location"},
		},
	}
}

// CurrentWeather geocodes location and fetches its current conditions.
func CurrentWeather(args map[string]any) ([]ContentPart, error) {
	locationVal, ok := args["location"]
	if !ok {
		return nil, fmt.Errorf("'location' argument is required")
	}
	location, ok := locationVal.(string)
	if !ok || location == "" {
		return nil, fmt.Errorf("'location' argument must be a non-empty string")
	}

	weather, err := geocodedWeather(location)
	if err != nil {
		return nil, fmt.Errorf("fetching weather: %w", err)
	}

	payload, err := json.Marshal(weather.Current)
	if err != nil {
		return nil, fmt.Errorf("preparing weather response: %w", err)
	}
	return text(string(payload)), nil
}

func geocodedWeather(location string) (openMeteoResponse, error) {
	geoURL := fmt.Sprintf("https://nominatim.openstreetmap.org/search?q=%s&format=jsonv2&limit=1", url.QueryEscape(location))
	req, err := http.NewRequest("GET", geoURL, nil)
	if err != nil {
		return openMeteoResponse{}, err
	}
	req.Header.Set("User-Agent", "agon-mcp-reference-server/1.0")

	resp, err := httpClient.Do(req)
	if err != nil {
		return openMeteoResponse{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return openMeteoResponse{}, fmt.Errorf("geocoding service returned status: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return openMeteoResponse{}, err
	}

	var geocoded []nominatimResult
	if err := json.Unmarshal(body, &geocoded); err != nil {
		return openMeteoResponse{}, fmt.Errorf("parsing geocoding response: %w", err)
	}
	if len(geocoded) == 0 {
		return openMeteoResponse{}, fmt.Errorf("location not found: %q", location)
	}

	weatherURL := fmt.Sprintf(
		"https://api.open-meteo.com/v1/forecast?latitude=%s&longitude=%s&current=temperature_2m,relative_humidity_2m,precipitation,wind_speed_10m&temperature_unit=fahrenheit&wind_speed_unit=mph",
		geocoded[0].Lat, geocoded[0].Lon,
	)
	resp, err = httpClient.Get(weatherURL)
	if err != nil {
		return openMeteoResponse{}, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return openMeteoResponse{}, fmt.Errorf("weather service returned status: %s", resp.Status)
	}
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return openMeteoResponse{}, err
	}

	var out openMeteoResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return openMeteoResponse{}, fmt.Errorf("parsing weather response: %w", err)
	}
	return out, nil
}
