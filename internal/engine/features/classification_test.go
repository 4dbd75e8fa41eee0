package features

import (
	"NDT7Spectra/internal/engine/normalizer"
	"NDT7Spectra/internal/model"
	"NDT7Spectra/pkg/ndt7"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Fixture(t *testing.T) {
	session := loadFixture(t)
	rows := Classify(session.UUID, normalizer.NormalizeAll(session.Measurements))
	require.Len(t, rows, 3)

	// 1. Throughput variants
	assert.Equal(t, 8.0, rows[0].ThroughputDeliveryRate)
	assert.Equal(t, 1.0, rows[0].ThroughputBytesAcked)
	assert.InDelta(t, 0.81088, rows[0].ThroughputSegsOut, 1e-9)
	assert.InDelta(t, (8+1+0.81088)/3, rows[0].ThroughputMean, 1e-9)
	assert.InDelta(t, 1.2, rows[2].ThroughputBytesAcked, 1e-12)

	// 2. Latency and its rolling mean
	assert.Equal(t, model.Some(10), rows[0].Latency)
	assert.Equal(t, model.Some(10), rows[0].LatencyMean)
	assert.Equal(t, model.Some(9.5), rows[1].LatencyMean)
	assert.InDelta(t, 28.0/3, rows[2].LatencyMean.Value, 1e-12)

	// 3. Loss ratio, trend and retransmit ratio
	assert.Equal(t, 0.2, rows[0].LossRatio)
	assert.Equal(t, 0.0, rows[1].LossRatio)
	assert.Equal(t, 0.5, rows[2].LossRatio)
	assert.Equal(t, 0.0, rows[0].LossTrend)
	assert.Equal(t, -0.2, rows[1].LossTrend)
	assert.Equal(t, 0.5, rows[2].LossTrend)
	assert.Equal(t, 1.0, rows[0].RetransmitRatio)
	assert.Equal(t, 1.0, rows[1].RetransmitRatio)
	assert.Equal(t, 0.0, rows[2].RetransmitRatio)

	// 4. The third row is nearest to the session mean throughput.
	for _, r := range rows {
		assert.Equal(t, 3.0, r.EscapeTime)
	}
}

func TestClassify_SkipsRowsWithoutTCPInfo(t *testing.T) {
	ms := []model.Measurement{
		{BBRInfo: &model.BBRInfo{BW: ptr(1)}},
		{TCPInfo: &model.TCPInfo{}},
		{TCPInfo: &model.TCPInfo{BytesAcked: ptr(1000)}},
	}
	rows := Classify("s", normalizer.NormalizeAll(ms))
	require.Len(t, rows, 1)

	// Missing elapsed time falls back to 1 µs and zeroes the throughputs.
	assert.Equal(t, 1e-6, rows[0].ElapsedSeconds)
	assert.Equal(t, 0.0, rows[0].ThroughputBytesAcked)
	assert.False(t, rows[0].Latency.Valid)
	assert.False(t, rows[0].LatencyMean.Valid)
	assert.Equal(t, 0.0, rows[0].LossRatio)
	assert.Equal(t, 0.0, rows[0].RetransmitRatio)
	assert.Equal(t, 1e-6, rows[0].EscapeTime)
}

func TestLatency_PrefersTCPInfo(t *testing.T) {
	assert.Equal(t, model.Some(4), latency(model.Sample{MinRTT: model.Some(4000), BBRMinRTT: model.Some(9000)}))
	assert.Equal(t, model.Some(9), latency(model.Sample{BBRMinRTT: model.Some(9000)}))
	assert.Equal(t, model.None, latency(model.Sample{}))
}

func TestRollingMean(t *testing.T) {
	in := []model.Float{model.Some(3), model.None, model.Some(6), model.Some(9), model.None, model.None, model.None}
	got := rollingMean(in, 3, 1)

	want := []model.Float{
		model.Some(3),
		model.Some(3),
		model.Some(4.5),
		model.Some(7.5),
		model.Some(7.5),
		model.Some(9),
		model.None,
	}
	assert.Equal(t, want, got)
}

func TestEscapeTime_FirstNearestWins(t *testing.T) {
	rows := []ClassificationRow{
		{ElapsedSeconds: 1, ThroughputDeliveryRate: 1, ThroughputBytesAcked: 1, ThroughputSegsOut: 1, ThroughputMean: 1},
		{ElapsedSeconds: 2, ThroughputDeliveryRate: 3, ThroughputBytesAcked: 3, ThroughputSegsOut: 3, ThroughputMean: 3},
	}
	// Session mean is 2 and both rows are at distance 1.
	assert.Equal(t, 1.0, escapeTime(rows))
}

func TestClassification_Extract(t *testing.T) {
	session := loadFixture(t)

	res, err := NewClassification().Extract(session)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Empty(t, res.Aggregates)

	row := res.Rows[0]
	// TCPInfo MinRTT is the one kept.
	assert.Equal(t, model.Number(10000), row["MinRTT"])
	assert.Equal(t, model.Number(1), row["ElapsedTime"])
	assert.Equal(t, model.Number(739), row["PacingGain"])
	assert.Equal(t, model.Number(3), row["Escape_Time"])

	partial := Classify("p", normalizer.NormalizeAll([]model.Measurement{
		{TCPInfo: &model.TCPInfo{ElapsedTime: ptr(1)}},
	}))[0].Row()
	_, hasBW := partial["BW"]
	assert.False(t, hasBW)

	_, err = NewClassification().Extract(&model.Session{UUID: "x", Measurements: []model.Measurement{{}}})
	assert.True(t, errors.Is(err, ErrEmptyResult))
}

func TestClassification_PassesThroughRawKeys(t *testing.T) {
	doc := `{"Download": {"UUID": "raw", "ServerMeasurements": [
		{"BBRInfo": {"BW": 100, "MaxPacingRate": 5},
		 "TCPInfo": {"ElapsedTime": 1000000, "RTO": 204000, "SndSsThresh": 10, "Sacked": 0, "RWndLimited": 3}},
		{"TCPInfo": {"State": 1}}
	]}}`
	session, err := ndt7.Decode("raw.json", strings.NewReader(doc))
	require.NoError(t, err)

	res, err := NewClassification().Extract(session)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	// 1. Every raw key becomes a column.
	row := res.Rows[0]
	assert.Equal(t, model.Number(100), row["BW"])
	assert.Equal(t, model.Number(5), row["MaxPacingRate"])
	assert.Equal(t, model.Number(204000), row["RTO"])
	assert.Equal(t, model.Number(10), row["SndSsThresh"])
	assert.Equal(t, model.Number(0), row["Sacked"])
	assert.Equal(t, model.Number(3), row["RWndLimited"])
	// Derived columns replace the raw value of the same name.
	assert.Equal(t, model.Number(1), row["ElapsedTime"])

	// 2. A TCPInfo holding only keys without a typed field still counts.
	assert.Equal(t, model.Number(1), res.Rows[1]["State"])
	assert.Equal(t, model.Number(1e-6), res.Rows[1]["ElapsedTime"])
}
