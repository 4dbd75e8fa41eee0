package model

// Float is an optional float64. The zero value is absent.
type Float struct {
	Value float64
	Valid bool
}

// Some returns a present Float.
func Some(v float64) Float {
	return Float{Value: v, Valid: true}
}

// None is the absent Float.
var None = Float{}

// FromPtr converts a decoded JSON number into a Float.
func FromPtr(p *float64) Float {
	if p == nil {
		return None
	}
	return Some(*p)
}

// Or returns the value, or def when absent.
func (f Float) Or(def float64) float64 {
	if !f.Valid {
		return def
	}
	return f.Value
}

// Sample is a normalized measurement. Values keep their source units
// (µs, bits/s, bytes, packets); absent fields stay absent.
type Sample struct {
	HasTCPInfo bool
	HasBBRInfo bool
	ConnUUID   string

	// TCPInfo
	ElapsedTime   Float
	RTT           Float
	RTTVar        Float
	MinRTT        Float
	SndCwnd       Float
	RcvSpace      Float
	SndMSS        Float
	BytesSent     Float
	BytesReceived Float
	BytesAcked    Float
	BytesRetrans  Float
	SegsIn        Float
	SegsOut       Float
	Retransmits   Float
	Retrans       Float
	TotalRetrans  Float
	Lost          Float
	Unacked       Float
	PacingRate    Float
	DeliveryRate  Float
	BusyTime      Float

	// BBRInfo
	BW         Float
	BBRMinRTT  Float
	PacingGain Float
	CwndGain   Float

	// Fields holds every raw BBRInfo then TCPInfo key of a decoded
	// measurement, TCPInfo winning on shared names. Nil when the
	// measurement was not decoded from JSON.
	Fields map[string]Value
}
