package measurement

import "time"

// Record is a single sensor observation. Immutable once created; the
// timestamp is always a UTC instant.
type Record struct {
	Timestamp time.Time `json:"timestamp_utc" msgpack:"timestamp_utc"`
	Value     float64   `json:"value" msgpack:"value"`
	SensorID  int64     `json:"sensor_id" msgpack:"sensor_id"`
	Location  string    `json:"location" msgpack:"location"`
	Latitude  float64   `json:"latitude" msgpack:"latitude"`
	Longitude float64   `json:"longitude" msgpack:"longitude"`
}

// Table is the full measurement dataset persisted between runs. Row order
// carries no meaning.
type Table []Record

// Key identifies a record for deduplication across overlapping fetch windows.
type Key struct {
	SensorID int64
	Unix     int64
}

func (r Record) key() Key {
	return Key{SensorID: r.SensorID, Unix: r.Timestamp.Unix()}
}
