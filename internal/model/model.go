// Package model holds the wire and domain types shared across the ADS-B
// pipeline: decoded Mode-S messages, per-aircraft track state, flight
// sessions, and the persisted path samples and published snapshots derived
// from them.
package model

import "time"

// CPRFormat is the parity of a Compact Position Reporting message.
type CPRFormat int

const (
	CPREven CPRFormat = iota
	CPROdd
)

// VelocityKind distinguishes airborne from surface velocity messages.
type VelocityKind int

const (
	VelocityAirborne VelocityKind = iota
	VelocitySurface
)

// MessageKind tags which variant a DecodedMessage carries.
type MessageKind int

const (
	KindIdentification MessageKind = iota
	KindAirbornePosition
	KindSurfacePosition
	KindVelocity
	KindOther
)

// Frame is a single raw Mode-S frame as read off the wire, already stripped
// of dump1090's asterisk/semicolon text framing.
type Frame struct {
	Hex    string
	RxTime time.Time
}

// DecodedMessage is the tagged union produced by the decoder wrapper. Only
// the fields relevant to Kind are populated; callers must branch on Kind
// and never infer the variant from field presence. The one exception is
// KindSurfacePosition: the ME field it's decoded from also carries the
// aircraft's movement/heading, so it optionally piggybacks the same
// GroundSpeed/TrackDeg/VelocityKind fields KindVelocity uses, gated by
// HasVelocity.
type DecodedMessage struct {
	Kind MessageKind
	ICAO uint32

	// KindIdentification
	Callsign string

	// KindAirbornePosition / KindSurfacePosition
	CPRFormat  CPRFormat
	EncLat     int
	EncLon     int
	AltitudeFt int // surface position messages carry AltitudeFt == 0

	// KindVelocity, and KindSurfacePosition when HasVelocity is set
	GroundSpeed     float64
	TrackDeg        float64
	VerticalRateFpm int
	VelocityKind    VelocityKind
	HasVelocity     bool // KindSurfacePosition only: movement/heading decoded

	RxTime time.Time
}

// CPRSample is one half of a CPR pair, buffered by parity on AircraftState.
type CPRSample struct {
	EncLat, EncLon int
	RxTime         time.Time
	Valid          bool
}

// AircraftState is the merged track record for one ICAO address. It is
// owned exclusively by the assembler task; callers only ever see copies
// returned from Snapshot().
type AircraftState struct {
	ICAO     uint32
	Callsign string

	Lat, Lon    float64
	HasPosition bool
	AltFt       int
	HasAltitude bool

	GroundSpeed     float64
	TrackDeg        float64
	VerticalRateFpm int
	VelocityKind    VelocityKind
	HasVelocity     bool

	EvenCPR, OddCPR CPRSample

	FirstSeen          time.Time
	LastSeen           time.Time
	AssemblyCompleteAt time.Time

	CurrentSessionID string
}

// Complete reports whether all seven required track fields — callsign, lat,
// lon, alt_ft, ground_speed, track_deg, vertical_rate_fpm — are populated.
func (a *AircraftState) Complete() bool {
	return a.Callsign != "" && a.HasPosition && a.HasAltitude && a.HasVelocity
}

// FlightSession is a contiguous interval during which an aircraft was
// observed, bounded by an expiry gap on either side.
type FlightSession struct {
	ID           string
	AircraftICAO uint32
	StartTime    time.Time
	EndTime      time.Time // zero value means still open
}

// PathSample is one append-only position/velocity observation tied to a
// flight session. Callsign travels alongside it (rather than living on
// the path row itself) so the DB worker can upsert the aircraft table
// without a second round trip.
type PathSample struct {
	SessionID       string
	ICAO            uint32
	Callsign        string
	Ts              time.Time
	Lat, Lon        float64
	AltFt           int
	Velocity        float64
	TrackDeg        float64
	VerticalRateFpm int
	Kind            VelocityKind
}

// PublishedAircraft is one entry in a PublishedFrame.
type PublishedAircraft struct {
	ICAO            uint32    `json:"icao"`
	Callsign        string    `json:"callsign"`
	Lat             float64   `json:"lat"`
	Lon             float64   `json:"lon"`
	AltFt           int       `json:"alt_ft"`
	GroundSpeed     float64   `json:"ground_speed"`
	TrackDeg        float64   `json:"track_deg"`
	VerticalRateFpm int       `json:"vertical_rate_fpm"`
	LastSeen        time.Time `json:"last_seen"`
}

// PublishedFrame is the JSON message broadcast to subscribers once per
// publisher tick. Only aircraft with a decoded position are included.
type PublishedFrame struct {
	Ts       time.Time           `json:"ts"`
	Aircraft []PublishedAircraft `json:"aircraft"`
}

// ICAOHex renders a 24-bit ICAO address as six uppercase hex digits.
func ICAOHex(icao uint32) string {
	const hexDigits = "0123456789ABCDEF"
	b := make([]byte, 6)
	for i := 5; i >= 0; i-- {
		b[i] = hexDigits[icao&0xF]
		icao >>= 4
	}
	return string(b)
}

// ICAOFromHex parses the six-hex-digit form produced by ICAOHex back into
// a 24-bit address. Non-hex input decodes to 0.
func ICAOFromHex(hex string) uint32 {
	var icao uint32
	for i := 0; i < len(hex); i++ {
		c := hex[i]
		var v uint32
		switch {
		case c >= '0' && c <= '9':
			v = uint32(c - '0')
		case c >= 'A' && c <= 'F':
			v = uint32(c-'A') + 10
		case c >= 'a' && c <= 'f':
			v = uint32(c-'a') + 10
		default:
			continue
		}
		icao = icao<<4 | v
	}
	return icao
}
