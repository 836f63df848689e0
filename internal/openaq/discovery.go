package openaq

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Coordinate is a geographic point.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Sensor identifies one pollutant sensor at a discovered location. Sensors
// are re-discovered on every run; there is no persistent registry.
type Sensor struct {
	ID        int64
	Location  string
	Latitude  float64
	Longitude float64
}

type locationResult struct {
	Name        string `json:"name"`
	Coordinates *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
	Sensors []struct {
		ID        int64 `json:"id"`
		Parameter struct {
			Name string `json:"name"`
		} `json:"parameter"`
	} `json:"sensors"`
}

// DiscoverSensors resolves all sensors measuring parameter within
// radiusMeters of center. Locations without coordinates and sensors whose
// parameter does not match are skipped silently; malformed upstream metadata
// must not sink discovery of the remaining sensors.
func (c *Client) DiscoverSensors(ctx context.Context, center Coordinate, radiusMeters int, parameter string) ([]Sensor, error) {
	params := url.Values{}
	params.Set("coordinates", formatCoordinate(center))
	params.Set("radius", strconv.Itoa(radiusMeters))

	locations, err := fetchAll[locationResult](ctx, c, "/locations", params)
	if err != nil {
		return nil, fmt.Errorf("discover sensors: %w", err)
	}

	var sensors []Sensor
	for _, loc := range locations {
		if loc.Coordinates == nil {
			continue
		}
		for _, s := range loc.Sensors {
			if s.ID == 0 || s.Parameter.Name != parameter {
				continue
			}
			sensors = append(sensors, Sensor{
				ID:        s.ID,
				Location:  loc.Name,
				Latitude:  loc.Coordinates.Latitude,
				Longitude: loc.Coordinates.Longitude,
			})
		}
	}
	return sensors, nil
}

func formatCoordinate(c Coordinate) string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}
