package gps

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
// It is assembled from all sentences of one epoch.
type Fix struct {
	Epoch      int     `json:"epoch" msgpack:"epoch"`             // batch sequence number
	Time       string  `json:"time" msgpack:"time"`               // e.g. "12:34:56.000"
	Date       string  `json:"date" msgpack:"date"`               // e.g. "2025-12-06"
	Latitude   float64 `json:"lat" msgpack:"lat"`                 // decimal degrees
	Longitude  float64 `json:"lon" msgpack:"lon"`                 // decimal degrees
	SpeedKnots float64 `json:"speed_knots" msgpack:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg" msgpack:"course_deg"`   // course over ground
	Validity   string  `json:"validity" msgpack:"validity"`       // "A" (valid) / "V" (void), etc.

	AltitudeM  float64 `json:"alt_m" msgpack:"alt_m"`             // above mean sea level
	Satellites int64   `json:"satellites" msgpack:"satellites"`   // in use
	FixQuality string  `json:"fix_quality" msgpack:"fix_quality"` // GGA quality indicator
	HDOP       float64 `json:"hdop" msgpack:"hdop"`
	PDOP       float64 `json:"pdop" msgpack:"pdop"`

	Sentences int `json:"sentences" msgpack:"sentences"` // parsed in this epoch
}

// Valid reports whether the receiver flagged the position as usable.
func (f Fix) Valid() bool { return f.Validity == "A" }
