package features

import (
	"NDT7Spectra/internal/engine/normalizer"
	"NDT7Spectra/internal/model"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

const (
	latencyWindow     = 3
	latencyMinPeriods = 1
)

// ClassificationRow is the per-measurement output of the classification
// mode.
type ClassificationRow struct {
	UUID   string
	Sample model.Sample

	// ElapsedSeconds falls back to 1 µs when the elapsed time is missing.
	ElapsedSeconds float64

	ThroughputDeliveryRate float64
	ThroughputBytesAcked   float64
	ThroughputSegsOut      float64
	ThroughputMean         float64

	Latency         model.Float // ms
	LatencyMean     model.Float // rolling mean over 3 rows
	LossRatio       float64
	RetransmitRatio float64
	LossTrend       float64
	EscapeTime      float64
}

type rawField struct {
	name string
	val  model.Float
}

// rawColumns lists the BBRInfo then TCPInfo fields copied into each row.
// TCPInfo is applied last so it wins on shared names.
func rawColumns(s model.Sample) []rawField {
	return []rawField{
		{"BW", s.BW},
		{"MinRTT", s.BBRMinRTT},
		{"PacingGain", s.PacingGain},
		{"CwndGain", s.CwndGain},
		{"RTT", s.RTT},
		{"RTTVar", s.RTTVar},
		{"MinRTT", s.MinRTT},
		{"SndCwnd", s.SndCwnd},
		{"RcvSpace", s.RcvSpace},
		{"SndMSS", s.SndMSS},
		{"BytesSent", s.BytesSent},
		{"BytesReceived", s.BytesReceived},
		{"BytesAcked", s.BytesAcked},
		{"BytesRetrans", s.BytesRetrans},
		{"SegsIn", s.SegsIn},
		{"SegsOut", s.SegsOut},
		{"Retransmits", s.Retransmits},
		{"Retrans", s.Retrans},
		{"TotalRetrans", s.TotalRetrans},
		{"Lost", s.Lost},
		{"Unacked", s.Unacked},
		{"PacingRate", s.PacingRate},
		{"DeliveryRate", s.DeliveryRate},
		{"BusyTime", s.BusyTime},
	}
}

// Row converts the record to its dataset columns. Every raw BBRInfo and
// TCPInfo key of a decoded measurement is passed through; otherwise the
// typed fields are. Raw fields the measurement did not report are left
// out and become empty cells.
func (r ClassificationRow) Row() model.Row {
	row := model.Row{}
	if r.Sample.Fields != nil {
		for name, v := range r.Sample.Fields {
			row[name] = v
		}
	} else {
		for _, c := range rawColumns(r.Sample) {
			if c.val.Valid {
				row[c.name] = model.Number(c.val.Value)
			}
		}
	}
	row["UUID"] = model.Text(r.UUID)
	row["ElapsedTime"] = model.Number(r.ElapsedSeconds)
	row["Throughput_DeliveryRate"] = model.Number(r.ThroughputDeliveryRate)
	row["Throughput_BytesAcked"] = model.Number(r.ThroughputBytesAcked)
	row["Throughput_SegsOut"] = model.Number(r.ThroughputSegsOut)
	row["Throughput_Mean"] = model.Number(r.ThroughputMean)
	row["Latency"] = model.Opt(r.Latency)
	row["Latency_Mean"] = model.Opt(r.LatencyMean)
	row["LossRatio"] = model.Number(r.LossRatio)
	row["Retransmit_Ratio"] = model.Number(r.RetransmitRatio)
	row["Loss_Trend"] = model.Number(r.LossTrend)
	row["Escape_Time"] = model.Number(r.EscapeTime)
	return row
}

// Classification is the classification-oriented mode.
type Classification struct{}

// NewClassification creates the classification mode.
func NewClassification() *Classification {
	return &Classification{}
}

// Name returns the mode name.
func (m *Classification) Name() string {
	return ModeClassification
}

// latency is the minimum RTT in ms. The TCPInfo value is preferred over
// the BBR one.
func latency(s model.Sample) model.Float {
	minRTT := s.MinRTT
	if !minRTT.Valid {
		minRTT = s.BBRMinRTT
	}
	if !minRTT.Valid {
		return model.None
	}
	return model.Some(normalizer.Millis(minRTT.Value))
}

// lossRatio is Lost/(Lost+Unacked+1), or 0 when an operand is missing.
func lossRatio(s model.Sample) float64 {
	if !s.Lost.Valid || !s.Unacked.Valid {
		return 0
	}
	return div(s.Lost, model.Some(s.Lost.Value+s.Unacked.Value+1)).Or(0)
}

// retransmitRatio is Retrans/(Lost+1), or 0 when an operand is missing.
func retransmitRatio(s model.Sample) float64 {
	if !s.Retrans.Valid || !s.Lost.Valid {
		return 0
	}
	return div(s.Retrans, model.Some(s.Lost.Value+1)).Or(0)
}

// Classify builds the classification rows of a session. Samples without
// TCPInfo are skipped.
func Classify(uuid string, samples []model.Sample) []ClassificationRow {
	var rows []ClassificationRow
	for _, s := range samples {
		if !s.HasTCPInfo {
			continue
		}
		secs, _ := normalizer.ElapsedSeconds(s)
		r := ClassificationRow{
			UUID:                   uuid,
			Sample:                 s,
			ElapsedSeconds:         secs,
			ThroughputDeliveryRate: normalizer.Mbps(s.DeliveryRate.Or(0) * 8),
			ThroughputBytesAcked:   normalizer.MbpsOver(s.BytesAcked.Or(0), s),
			ThroughputSegsOut:      normalizer.MbpsOver(s.SegsOut.Or(0)*s.SndMSS.Or(1), s),
			Latency:                latency(s),
			LossRatio:              lossRatio(s),
			RetransmitRatio:        retransmitRatio(s),
		}
		r.ThroughputMean = (r.ThroughputDeliveryRate + r.ThroughputBytesAcked + r.ThroughputSegsOut) / 3
		rows = append(rows, r)
	}
	if len(rows) == 0 {
		return nil
	}

	latencies := make([]model.Float, len(rows))
	for i, r := range rows {
		latencies[i] = r.Latency
	}
	rolling := rollingMean(latencies, latencyWindow, latencyMinPeriods)

	escape := escapeTime(rows)
	for i := range rows {
		rows[i].LatencyMean = rolling[i]
		if i > 0 {
			rows[i].LossTrend = rows[i].LossRatio - rows[i-1].LossRatio
		}
		rows[i].EscapeTime = escape
	}
	return rows
}

// escapeTime returns the elapsed seconds of the first row whose mean
// throughput is nearest to the session mean throughput. The session mean
// is the mean of the three throughput column means.
func escapeTime(rows []ClassificationRow) float64 {
	var delivery, acked, segs stats.Float64Data
	for _, r := range rows {
		delivery = append(delivery, r.ThroughputDeliveryRate)
		acked = append(acked, r.ThroughputBytesAcked)
		segs = append(segs, r.ThroughputSegsOut)
	}
	sessionMean := orZero(stats.Float64Data{
		orZero(delivery.Mean()),
		orZero(acked.Mean()),
		orZero(segs.Mean()),
	}.Mean())

	best := 0
	bestDist := math.Inf(1)
	for i, r := range rows {
		if d := math.Abs(r.ThroughputMean - sessionMean); d < bestDist {
			best, bestDist = i, d
		}
	}
	return rows[best].ElapsedSeconds
}

// Extract implements model.Task.
func (m *Classification) Extract(session *model.Session) (*model.SessionResult, error) {
	rows := Classify(session.UUID, normalizer.NormalizeAll(session.Measurements))
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no measurement carries TCPInfo", ErrEmptyResult)
	}
	res := &model.SessionResult{
		UUID:     session.UUID,
		FileName: session.FileName,
		Rows:     make([]model.Row, len(rows)),
	}
	for i, r := range rows {
		res.Rows[i] = r.Row()
	}
	return res, nil
}
