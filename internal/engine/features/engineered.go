package features

import (
	"NDT7Spectra/internal/engine/normalizer"
	"NDT7Spectra/internal/model"
	"fmt"

	"github.com/montanaflynn/stats"
)

// EngineeredRow is the per-measurement output of the engineered mode.
// Raw fields keep their source units.
type EngineeredRow struct {
	UUID        string
	ElapsedTime model.Float
	RTT         model.Float
	RTTVar      model.Float
	BusyTime    model.Float
	MinRTT      model.Float

	CumulativeTotalRetrans     float64
	CumulativeBytesTransferred float64
	AvgRTTWindow               float64
	AvgCwndWindow              float64

	RateOfChangePacingRate   model.Float
	RatioBusyTimeElapsedTime model.Float
	PacingGain               model.Float
	CwndGain                 model.Float
	DeliveryRateVsPacingRate model.Float
	ChangePacingGain         model.Float
	ChangeCwndGain           model.Float
	RetransmissionRate       float64
	BW                       model.Float
}

// Row converts the record to its dataset columns.
func (r EngineeredRow) Row() model.Row {
	return model.Row{
		"UUID":                       model.Text(r.UUID),
		"ElapsedTime":                model.Opt(r.ElapsedTime),
		"RTT":                        model.Opt(r.RTT),
		"RTTVar":                     model.Opt(r.RTTVar),
		"BusyTime":                   model.Opt(r.BusyTime),
		"MinRTT":                     model.Opt(r.MinRTT),
		"CumulativeTotalRetrans":     model.Number(r.CumulativeTotalRetrans),
		"CumulativeBytesTransferred": model.Number(r.CumulativeBytesTransferred),
		"AvgRTTWindow":               model.Number(r.AvgRTTWindow),
		"AvgCwndWindow":              model.Number(r.AvgCwndWindow),
		"RateOfChangePacingRate":     model.Opt(r.RateOfChangePacingRate),
		"RatioBusyTimeElapsedTime":   model.Opt(r.RatioBusyTimeElapsedTime),
		"PacingGain":                 model.Opt(r.PacingGain),
		"CwndGain":                   model.Opt(r.CwndGain),
		"DeliveryRateVsPacingRate":   model.Opt(r.DeliveryRateVsPacingRate),
		"ChangePacingGain":           model.Opt(r.ChangePacingGain),
		"ChangeCwndGain":             model.Opt(r.ChangeCwndGain),
		"RetransmissionRate":         model.Number(r.RetransmissionRate),
		"BW":                         model.Opt(r.BW),
	}
}

// accumulator is the running state of one session's fold. A new one is
// created for every session.
type accumulator struct {
	uuid string

	cumulativeRetrans float64
	cumulativeBytes   float64
	// Expanding windows: every value since the start of the session.
	rttWindow  stats.Float64Data
	cwndWindow stats.Float64Data

	prevPacingRate model.Float
	prevPacingGain model.Float
	prevCwndGain   model.Float
}

func newAccumulator(uuid string) *accumulator {
	return &accumulator{uuid: uuid}
}

// step folds one included sample and returns its row.
func (a *accumulator) step(s model.Sample) EngineeredRow {
	elapsed := s.ElapsedTime
	// Elapsed time in seconds as a divisor; absent when zero or missing.
	var elapsedSecs model.Float
	if elapsed.Valid && elapsed.Value != 0 {
		elapsedSecs = model.Some(normalizer.Seconds(elapsed.Value))
	}

	a.cumulativeRetrans += s.Retransmits.Or(0)
	a.cumulativeBytes += s.BytesAcked.Or(0) + s.BytesReceived.Or(0)
	a.rttWindow = append(a.rttWindow, s.RTT.Or(0))
	a.cwndWindow = append(a.cwndWindow, s.SndCwnd.Or(0))

	row := EngineeredRow{
		UUID:                       a.uuid,
		ElapsedTime:                elapsed,
		RTT:                        s.RTT,
		RTTVar:                     s.RTTVar,
		BusyTime:                   s.BusyTime,
		MinRTT:                     s.MinRTT,
		CumulativeTotalRetrans:     a.cumulativeRetrans,
		CumulativeBytesTransferred: a.cumulativeBytes,
		AvgRTTWindow:               orZero(a.rttWindow.Mean()),
		AvgCwndWindow:              orZero(a.cwndWindow.Mean()),
		PacingGain:                 s.PacingGain,
		CwndGain:                   s.CwndGain,
		BW:                         s.BW,
	}

	// Divides by the absolute elapsed time of the current row, not by the
	// time since the previous row.
	row.RateOfChangePacingRate = div(sub(s.PacingRate, a.prevPacingRate), elapsedSecs)
	row.RatioBusyTimeElapsedTime = div(s.BusyTime, elapsed)
	row.DeliveryRateVsPacingRate = div(s.DeliveryRate, s.PacingRate)
	row.ChangePacingGain = sub(s.PacingGain, a.prevPacingGain)
	row.ChangeCwndGain = sub(s.CwndGain, a.prevCwndGain)
	if elapsedSecs.Valid {
		row.RetransmissionRate = s.Retransmits.Or(0) / elapsedSecs.Value
	}

	a.prevPacingRate = s.PacingRate
	a.prevPacingGain = s.PacingGain
	a.prevCwndGain = s.CwndGain
	return row
}

// Engineered is the per-row engineered feature mode.
type Engineered struct {
	threshold float64
}

// NewEngineered creates the engineered mode for a time threshold in seconds.
func NewEngineered(threshold float64) *Engineered {
	return &Engineered{threshold: threshold}
}

// Name returns the mode name.
func (e *Engineered) Name() string {
	return ModeEngineered
}

// Threshold returns the time threshold in seconds.
func (e *Engineered) Threshold() float64 {
	return e.threshold
}

// included reports whether a sample takes part in the per-row pass.
func (e *Engineered) included(s model.Sample) bool {
	return s.HasTCPInfo && s.ElapsedTime.Valid &&
		s.ElapsedTime.Value <= e.threshold*normalizer.MicrosPerSecond
}

// Fold runs the per-row pass over a session's samples in order.
func (e *Engineered) Fold(uuid string, samples []model.Sample) []EngineeredRow {
	acc := newAccumulator(uuid)
	var rows []EngineeredRow
	for _, s := range samples {
		if !e.included(s) {
			continue
		}
		rows = append(rows, acc.step(s))
	}
	return rows
}

// Extract implements model.Task. The average bandwidth aggregate is taken
// over every measurement, regardless of the threshold.
func (e *Engineered) Extract(session *model.Session) (*model.SessionResult, error) {
	samples := normalizer.NormalizeAll(session.Measurements)
	rows := e.Fold(session.UUID, samples)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no TCPInfo data within the first %v seconds", ErrEmptyResult, e.threshold)
	}

	res := &model.SessionResult{
		UUID:     session.UUID,
		FileName: session.FileName,
		Rows:     make([]model.Row, len(rows)),
		Aggregates: map[string]model.Float{
			ColAverageBandwidth: averageBandwidth(samples),
		},
	}
	for i, r := range rows {
		res.Rows[i] = r.Row()
	}
	return res, nil
}
