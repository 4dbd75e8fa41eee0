package normalizer

import (
	"NDT7Spectra/internal/model"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestNormalize_MissingSubObjects(t *testing.T) {
	s := Normalize(model.Measurement{})

	assert.False(t, s.HasTCPInfo)
	assert.False(t, s.HasBBRInfo)
	assert.False(t, s.ElapsedTime.Valid)
	assert.False(t, s.BW.Valid)
	assert.Equal(t, 0.0, s.BytesAcked.Or(0))
	assert.Equal(t, "", s.ConnUUID)
}

func TestNormalize_Fields(t *testing.T) {
	uuid := "ndt-abc"
	s := Normalize(model.Measurement{
		ConnectionInfo: &model.ConnectionInfo{UUID: &uuid},
		BBRInfo:        &model.BBRInfo{BW: ptr(500000), PacingGain: ptr(256)},
		TCPInfo:        &model.TCPInfo{ElapsedTime: ptr(2000000), BytesAcked: ptr(250000), RTT: ptr(0)},
	})

	assert.Equal(t, "ndt-abc", s.ConnUUID)
	assert.Equal(t, model.Some(500000), s.BW)
	assert.Equal(t, model.Some(256), s.PacingGain)
	assert.False(t, s.CwndGain.Valid)
	assert.Equal(t, model.Some(2000000), s.ElapsedTime)
	// A reported zero is present, not absent.
	assert.Equal(t, model.Some(0), s.RTT)
	assert.False(t, s.PacingRate.Valid)
}

func TestConversions(t *testing.T) {
	assert.Equal(t, 0.5, Mbps(500000))
	assert.Equal(t, 20.0, Millis(20000))
	assert.Equal(t, 2.0, Seconds(2000000))
}

func TestThroughput(t *testing.T) {
	s := Normalize(model.Measurement{
		TCPInfo: &model.TCPInfo{ElapsedTime: ptr(2000000), BytesAcked: ptr(250000)},
	})
	assert.Equal(t, 1.0, Throughput(s))

	missing := Normalize(model.Measurement{TCPInfo: &model.TCPInfo{BytesAcked: ptr(250000)}})
	assert.Equal(t, 0.0, Throughput(missing))

	zero := Normalize(model.Measurement{TCPInfo: &model.TCPInfo{ElapsedTime: ptr(0), BytesAcked: ptr(250000)}})
	assert.Equal(t, 0.0, Throughput(zero))
}

func TestElapsedSeconds(t *testing.T) {
	secs, degenerate := ElapsedSeconds(model.Sample{})
	assert.True(t, degenerate)
	assert.Equal(t, 1e-6, secs)

	secs, degenerate = ElapsedSeconds(model.Sample{ElapsedTime: model.Some(3000000)})
	assert.False(t, degenerate)
	assert.Equal(t, 3.0, secs)
}

func TestNormalize_EmptyTCPInfo(t *testing.T) {
	s := Normalize(model.Measurement{TCPInfo: &model.TCPInfo{}})
	assert.False(t, s.HasTCPInfo)

	s = Normalize(model.Measurement{TCPInfo: &model.TCPInfo{Lost: ptr(0)}})
	assert.True(t, s.HasTCPInfo)
}

func decodeMeasurement(t *testing.T, doc string) model.Measurement {
	t.Helper()
	var m model.Measurement
	require.NoError(t, json.Unmarshal([]byte(doc), &m))
	return m
}

func TestNormalize_DecodedTCPInfoPresence(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"missing", `{}`, false},
		{"null", `{"TCPInfo": null}`, false},
		{"empty object", `{"TCPInfo": {}}`, false},
		{"only unknown keys", `{"TCPInfo": {"State": 1}}`, true},
		{"only nulls", `{"TCPInfo": {"RTT": null, "Lost": null}}`, true},
		{"known key", `{"TCPInfo": {"RTT": 5}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Normalize(decodeMeasurement(t, tt.doc))
			assert.Equal(t, tt.want, s.HasTCPInfo)
		})
	}
}

func TestNormalize_RawFields(t *testing.T) {
	m := decodeMeasurement(t, `{
		"BBRInfo": {"BW": 1, "MinRTT": 7, "MaxPacingRate": 3},
		"TCPInfo": {"MinRTT": 9, "RTO": 204000, "RWndLimited": 0, "CAState": null}
	}`)
	s := Normalize(m)

	want := map[string]model.Value{
		"BW":            model.Number(1),
		"MaxPacingRate": model.Number(3),
		"MinRTT":        model.Number(9),
		"RTO":           model.Number(204000),
		"RWndLimited":   model.Number(0),
		"CAState":       model.Empty,
	}
	assert.Equal(t, want, s.Fields)
	assert.Equal(t, model.Some(7), s.BBRMinRTT)
	assert.Equal(t, model.Some(9), s.MinRTT)

	// Measurements built in code carry no raw fields.
	assert.Nil(t, Normalize(model.Measurement{TCPInfo: &model.TCPInfo{RTT: ptr(1)}}).Fields)
}
