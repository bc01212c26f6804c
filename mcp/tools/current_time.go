package tools

import (
	"encoding/json"
	"time"
)

// CurrentTimeName is the canonical name of the time tool.
const CurrentTimeName = "current_time"

// CurrentTimeDefinition describes the time tool for discovery.
func CurrentTimeDefinition() Definition {
	return Definition{
		Name:        CurrentTimeName,
		Description: "Get the current local time.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

// CurrentTime returns the current system time as a JSON text part.
func CurrentTime(args map[string]any) ([]ContentPart, error) {
	now := time.Now()
	payload, err := json.Marshal(map[string]any{
		"local_time": now.Format(time.RFC3339),
		"timezone":   now.Location().String(),
		"unix":       now.Unix(),
	})
	if err != nil {
		return nil, err
	}
	return text(string(payload)), nil
}
