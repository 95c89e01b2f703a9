// Package models provides data model definitions for the photo metadata core.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Unavailable is the serialized marker for a missing coordinate pair.
// It is distinct from a computation error (see the geo package).
const Unavailable = "N/A"

// PredictionDateLayout is the ISO date layout used by PredictionDate.
const PredictionDateLayout = "2006-01-02"

// DateLayout renders a file's last-modified timestamp the way the
// exported documents expect it (day-first, 24h clock).
const DateLayout = "02/01/2006 15:04:05"

// Status is the workflow state of a record.
type Status string

const (
	StatusPending Status = "Pendente"
	StatusDone    Status = "Concluido"
	StatusOverdue Status = "Atrasado"
)

// Rank returns the sort priority of the status: overdue records come
// first, done records last. Unknown statuses sort after everything.
func (s Status) Rank() int {
	switch s {
	case StatusOverdue:
		return 1
	case StatusPending:
		return 2
	case StatusDone:
		return 3
	}
	return 4
}

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusDone || s == StatusOverdue
}

// ParseStatus accepts the serialized form or an English alias.
func ParseStatus(v string) (Status, error) {
	switch v {
	case "Pendente", "pendente", "pending", "Pending":
		return StatusPending, nil
	case "Concluido", "concluido", "done", "Done":
		return StatusDone, nil
	case "Atrasado", "atrasado", "overdue", "Overdue":
		return StatusOverdue, nil
	}
	return "", fmt.Errorf("unknown status %q", v)
}

// Coordinate is a tagged optional pair of decimal degrees. Lat and Lon
// are meaningful only when Valid is true; an absent coordinate
// serializes as the Unavailable marker for both fields.
type Coordinate struct {
	Lat   float64
	Lon   float64
	Valid bool
}

// NewCoordinate returns a present coordinate pair.
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: lat, Lon: lon, Valid: true}
}

// PhotoRecord is the single entity of the pipeline: one uploaded photo
// with its extracted metadata and workflow fields.
type PhotoRecord struct {
	Index          int
	Name           string
	Status         Status
	Description    string
	FileSize       string // "NN.NN KB"
	FileType       string // MIME type
	Date           string // last-modified, DateLayout
	Coordinate     Coordinate
	Thumbnail      string // base64 data URI
	PredictionDate string // PredictionDateLayout
}

// recordJSON is the wire shape of a PhotoRecord. The coordinate fields
// keep the historical capitalized keys and the number-or-marker union
// of the backup format.
type recordJSON struct {
	Index          int         `json:"index"`
	Name           string      `json:"name"`
	Status         Status      `json:"status"`
	Description    string      `json:"description"`
	FileSize       string      `json:"fileSize"`
	FileType       string      `json:"fileType"`
	Date           string      `json:"date"`
	Latitude       interface{} `json:"Latitude"`
	Longitude      interface{} `json:"Longitude"`
	Thumbnail      string      `json:"thumbnail"`
	PredictionDate string      `json:"predictionDate"`
}

// MarshalJSON implements json.Marshaler.
func (r PhotoRecord) MarshalJSON() ([]byte, error) {
	w := recordJSON{
		Index:          r.Index,
		Name:           r.Name,
		Status:         r.Status,
		Description:    r.Description,
		FileSize:       r.FileSize,
		FileType:       r.FileType,
		Date:           r.Date,
		Latitude:       Unavailable,
		Longitude:      Unavailable,
		Thumbnail:      r.Thumbnail,
		PredictionDate: r.PredictionDate,
	}
	if r.Coordinate.Valid {
		w.Latitude = r.Coordinate.Lat
		w.Longitude = r.Coordinate.Lon
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. Coordinates may arrive as
// numbers or as numeric strings; anything else is treated as absent.
// A half-present pair is demoted to absent so the both-or-neither
// invariant holds for every record that enters the system.
func (r *PhotoRecord) UnmarshalJSON(data []byte) error {
	var w recordJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Index = w.Index
	r.Name = w.Name
	r.Status = w.Status
	r.Description = w.Description
	r.FileSize = w.FileSize
	r.FileType = w.FileType
	r.Date = w.Date
	r.Thumbnail = w.Thumbnail
	r.PredictionDate = w.PredictionDate

	lat, okLat := coordValue(w.Latitude)
	lon, okLon := coordValue(w.Longitude)
	if okLat && okLon {
		r.Coordinate = NewCoordinate(lat, lon)
	} else {
		r.Coordinate = Coordinate{}
	}
	return nil
}

// coordValue interprets one leg of the serialized coordinate union.
func coordValue(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if t == Unavailable || t == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// PredictionTime parses PredictionDate. The zero time and false are
// returned when the field is empty or malformed.
func (r *PhotoRecord) PredictionTime() (time.Time, bool) {
	if r.PredictionDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(PredictionDateLayout, r.PredictionDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Clone returns a shallow copy of the record. The thumbnail string is
// shared, which is fine: strings are immutable.
func (r *PhotoRecord) Clone() *PhotoRecord {
	c := *r
	return &c
}
