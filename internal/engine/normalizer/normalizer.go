// Package normalizer turns raw NDT7 measurements into model.Sample values
// and holds the unit conversions shared by every feature mode.
package normalizer

import (
	"NDT7Spectra/internal/model"
)

const (
	BitsPerMegabit  = 1e6
	MicrosPerMilli  = 1e3
	MicrosPerSecond = 1e6

	// DefaultElapsedMicros replaces a missing elapsed time when it is used
	// as a divisor.
	DefaultElapsedMicros = 1
)

// Normalize extracts the fields of interest from one raw measurement.
// Missing sub-objects and fields are reported as absent.
func Normalize(m model.Measurement) model.Sample {
	var s model.Sample

	if ci := m.ConnectionInfo; ci != nil && ci.UUID != nil {
		s.ConnUUID = *ci.UUID
	}

	s.Fields = rawFields(m)

	if bbr := m.BBRInfo; bbr != nil {
		s.HasBBRInfo = true
		s.BW = model.FromPtr(bbr.BW)
		s.BBRMinRTT = model.FromPtr(bbr.MinRTT)
		s.PacingGain = model.FromPtr(bbr.PacingGain)
		s.CwndGain = model.FromPtr(bbr.CwndGain)
	}

	if tcp := m.TCPInfo; tcp != nil {
		s.HasTCPInfo = hasKeys(m.RawTCPInfo, *tcp != (model.TCPInfo{}))
		s.ElapsedTime = model.FromPtr(tcp.ElapsedTime)
		s.RTT = model.FromPtr(tcp.RTT)
		s.RTTVar = model.FromPtr(tcp.RTTVar)
		s.MinRTT = model.FromPtr(tcp.MinRTT)
		s.SndCwnd = model.FromPtr(tcp.SndCwnd)
		s.RcvSpace = model.FromPtr(tcp.RcvSpace)
		s.SndMSS = model.FromPtr(tcp.SndMSS)
		s.BytesSent = model.FromPtr(tcp.BytesSent)
		s.BytesReceived = model.FromPtr(tcp.BytesReceived)
		s.BytesAcked = model.FromPtr(tcp.BytesAcked)
		s.BytesRetrans = model.FromPtr(tcp.BytesRetrans)
		s.SegsIn = model.FromPtr(tcp.SegsIn)
		s.SegsOut = model.FromPtr(tcp.SegsOut)
		s.Retransmits = model.FromPtr(tcp.Retransmits)
		s.Retrans = model.FromPtr(tcp.Retrans)
		s.TotalRetrans = model.FromPtr(tcp.TotalRetrans)
		s.Lost = model.FromPtr(tcp.Lost)
		s.Unacked = model.FromPtr(tcp.Unacked)
		s.PacingRate = model.FromPtr(tcp.PacingRate)
		s.DeliveryRate = model.FromPtr(tcp.DeliveryRate)
		s.BusyTime = model.FromPtr(tcp.BusyTime)
	}

	return s
}

// hasKeys reports whether a sub-object carries any key. An empty object
// counts as absent. Without the raw object, typed reports whether any
// typed field was set.
func hasKeys(raw map[string]interface{}, typed bool) bool {
	if raw == nil {
		return typed
	}
	return len(raw) > 0
}

// rawFields flattens the raw sub-objects into cells. Keys present with a
// null or non-scalar value are kept as empty cells.
func rawFields(m model.Measurement) map[string]model.Value {
	if m.RawBBRInfo == nil && m.RawTCPInfo == nil {
		return nil
	}
	fields := make(map[string]model.Value, len(m.RawBBRInfo)+len(m.RawTCPInfo))
	for _, obj := range []map[string]interface{}{m.RawBBRInfo, m.RawTCPInfo} {
		for k, v := range obj {
			switch v := v.(type) {
			case float64:
				fields[k] = model.Number(v)
			case string:
				fields[k] = model.Text(v)
			case bool:
				if v {
					fields[k] = model.Number(1)
				} else {
					fields[k] = model.Number(0)
				}
			default:
				fields[k] = model.Empty
			}
		}
	}
	return fields
}

// NormalizeAll normalizes a whole measurement sequence, preserving order.
func NormalizeAll(ms []model.Measurement) []model.Sample {
	out := make([]model.Sample, len(ms))
	for i, m := range ms {
		out[i] = Normalize(m)
	}
	return out
}

// Mbps converts bits/s to megabits/s.
func Mbps(bitsPerSecond float64) float64 {
	return bitsPerSecond / BitsPerMegabit
}

// Millis converts microseconds to milliseconds.
func Millis(us float64) float64 {
	return us / MicrosPerMilli
}

// Seconds converts microseconds to seconds.
func Seconds(us float64) float64 {
	return us / MicrosPerSecond
}

// ElapsedSeconds returns the elapsed time as a divisor in seconds. A
// missing elapsed time is replaced by DefaultElapsedMicros and reported as
// degenerate; quantities divided by it must then be treated as zero.
func ElapsedSeconds(s model.Sample) (secs float64, degenerate bool) {
	if !s.ElapsedTime.Valid {
		return Seconds(DefaultElapsedMicros), true
	}
	return Seconds(s.ElapsedTime.Value), s.ElapsedTime.Value <= 0
}

// MbpsOver returns bytes*8 over the elapsed time, in Mbps. It is zero for
// a degenerate elapsed time.
func MbpsOver(bytes float64, s model.Sample) float64 {
	secs, degenerate := ElapsedSeconds(s)
	if degenerate {
		return 0
	}
	return (bytes * 8) / (secs * BitsPerMegabit)
}

// Throughput returns BytesAcked*8 over the elapsed time, in Mbps.
func Throughput(s model.Sample) float64 {
	return MbpsOver(s.BytesAcked.Or(0), s)
}
