package model

import (
	"encoding/json"
	"path/filepath"
)

// Record is the top-level structure of one NDT7 session file.
type Record struct {
	Download *Download `json:"Download"`
}

// Download holds the download half of an NDT7 test.
type Download struct {
	UUID               *string        `json:"UUID"`
	StartTime          *string        `json:"StartTime"`
	EndTime            *string        `json:"EndTime"`
	ServerMeasurements *[]Measurement `json:"ServerMeasurements"`
}

// Measurement is one sample reported by the server for the flow under test.
// Each sub-object may be absent or null.
type Measurement struct {
	ConnectionInfo *ConnectionInfo `json:"ConnectionInfo"`
	BBRInfo        *BBRInfo        `json:"BBRInfo"`
	TCPInfo        *TCPInfo        `json:"TCPInfo"`

	// RawBBRInfo and RawTCPInfo hold every key of the sub-objects as
	// decoded, including the ones without a typed field. They are nil for
	// measurements built in code.
	RawBBRInfo map[string]interface{} `json:"-"`
	RawTCPInfo map[string]interface{} `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps the raw sub-objects.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	type plain Measurement
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw struct {
		BBRInfo map[string]interface{} `json:"BBRInfo"`
		TCPInfo map[string]interface{} `json:"TCPInfo"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Measurement(p)
	m.RawBBRInfo = raw.BBRInfo
	m.RawTCPInfo = raw.TCPInfo
	return nil
}

// ConnectionInfo identifies the connection a measurement belongs to.
type ConnectionInfo struct {
	Client string  `json:"Client"`
	Server string  `json:"Server"`
	UUID   *string `json:"UUID"`
}

// BBRInfo carries the congestion-control estimates of BBR.
type BBRInfo struct {
	BW         *float64 `json:"BW"`         // bits/s
	MinRTT     *float64 `json:"MinRTT"`     // µs
	PacingGain *float64 `json:"PacingGain"` // fixed-point gain
	CwndGain   *float64 `json:"CwndGain"`   // fixed-point gain
}

// TCPInfo carries the kernel tcp_info counters sampled during the test.
// Times are in microseconds, rates in bits/s.
type TCPInfo struct {
	ElapsedTime   *float64 `json:"ElapsedTime"`
	RTT           *float64 `json:"RTT"`
	RTTVar        *float64 `json:"RTTVar"`
	MinRTT        *float64 `json:"MinRTT"`
	SndCwnd       *float64 `json:"SndCwnd"`
	RcvSpace      *float64 `json:"RcvSpace"`
	SndMSS        *float64 `json:"SndMSS"`
	BytesSent     *float64 `json:"BytesSent"`
	BytesReceived *float64 `json:"BytesReceived"`
	BytesAcked    *float64 `json:"BytesAcked"`
	BytesRetrans  *float64 `json:"BytesRetrans"`
	SegsIn        *float64 `json:"SegsIn"`
	SegsOut       *float64 `json:"SegsOut"`
	Retransmits   *float64 `json:"Retransmits"`
	Retrans       *float64 `json:"Retrans"`
	TotalRetrans  *float64 `json:"TotalRetrans"`
	Lost          *float64 `json:"Lost"`
	Unacked       *float64 `json:"Unacked"`
	PacingRate    *float64 `json:"PacingRate"`
	DeliveryRate  *float64 `json:"DeliveryRate"`
	BusyTime      *float64 `json:"BusyTime"`
}

// Session is one decoded NDT7 test run ready for feature extraction.
type Session struct {
	UUID         string
	FileName     string
	StartTime    *string
	EndTime      *string
	Measurements []Measurement
}

// NewSession builds a Session from a decoded record. The caller must have
// checked that the record carries a Download with ServerMeasurements.
func NewSession(path string, rec *Record) *Session {
	s := &Session{
		FileName:     filepath.Base(path),
		StartTime:    rec.Download.StartTime,
		EndTime:      rec.Download.EndTime,
		Measurements: *rec.Download.ServerMeasurements,
	}
	s.UUID = resolveUUID(s.FileName, rec.Download.UUID, s.Measurements)
	return s
}

// resolveUUID prefers the download UUID, then the first connection UUID,
// and finally the file name so that every session has a stable key.
func resolveUUID(fileName string, downloadUUID *string, ms []Measurement) string {
	if downloadUUID != nil && *downloadUUID != "" {
		return *downloadUUID
	}
	for _, m := range ms {
		if m.ConnectionInfo != nil && m.ConnectionInfo.UUID != nil && *m.ConnectionInfo.UUID != "" {
			return *m.ConnectionInfo.UUID
		}
	}
	return fileName
}
