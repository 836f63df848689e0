package openaq

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ktmair/pm25-pipeline/internal/measurement"
)

type measurementResult struct {
	Value  *float64 `json:"value"`
	Period struct {
		DatetimeFrom struct {
			UTC string `json:"utc"`
		} `json:"datetimeFrom"`
	} `json:"period"`
}

// FetchMeasurements pages through a sensor's measurements inside the UTC
// window [from, to) and projects them into measurement records tagged with
// the sensor's identity. Rows missing the nested timestamp, carrying a null
// value, or whose timestamp does not parse as ISO-8601 are dropped
// individually; a malformed row never fails the fetch.
func (c *Client) FetchMeasurements(ctx context.Context, sensor Sensor, from, to time.Time) (measurement.Table, error) {
	params := url.Values{}
	params.Set("datetime_from", from.UTC().Format(time.RFC3339))
	params.Set("datetime_to", to.UTC().Format(time.RFC3339))

	rows, err := fetchAll[measurementResult](ctx, c, fmt.Sprintf("/sensors/%d/measurements", sensor.ID), params)
	if err != nil {
		return nil, fmt.Errorf("fetch measurements for sensor %d: %w", sensor.ID, err)
	}

	records := make(measurement.Table, 0, len(rows))
	for _, row := range rows {
		if row.Value == nil || row.Period.DatetimeFrom.UTC == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, row.Period.DatetimeFrom.UTC)
		if err != nil {
			continue
		}
		records = append(records, measurement.Record{
			Timestamp: ts.UTC(),
			Value:     *row.Value,
			SensorID:  sensor.ID,
			Location:  sensor.Location,
			Latitude:  sensor.Latitude,
			Longitude: sensor.Longitude,
		})
	}
	return records, nil
}
