package features

import (
	"NDT7Spectra/internal/engine/normalizer"
	"NDT7Spectra/internal/model"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/montanaflynn/stats"
)

// SessionSummary is the one-row-per-session output of the summary mode.
type SessionSummary struct {
	UUID            string
	FileName        string
	DurationSeconds float64
	NumFlows        int

	MaxBandwidthMbps  float64
	MeanBandwidthMbps float64
	MinBandwidthMbps  float64
	StdBandwidthMbps  float64

	MaxPacingRateMbps  float64
	MeanPacingRateMbps float64

	MinRTTMs  float64
	MaxRTTMs  float64
	MeanRTTMs float64
	StdRTTMs  float64

	MaxCwndPackets  float64
	MeanCwndPackets float64

	MaxRcvWindowBytes  float64
	MeanRcvWindowBytes float64

	TotalBytesAcked    float64
	TotalBytesSent     float64
	TotalBytesReceived float64

	TotalRetransmissions float64
	LossRatePercent      float64

	MaxDeliveryRateMbps  float64
	MeanDeliveryRateMbps float64

	TotalBusyTimeMicros float64

	MaxThroughputMbps  float64
	MeanThroughputMbps float64
	MinThroughputMbps  float64
	StdThroughputMbps  float64

	// AverageBandwidth is in bits/s and absent when no measurement
	// reports a bandwidth estimate.
	AverageBandwidth model.Float
}

// Row converts the summary to its dataset columns.
func (s SessionSummary) Row() model.Row {
	return model.Row{
		"uuid":                       model.Text(s.UUID),
		"filename":                   model.Text(s.FileName),
		"SessionDuration_seconds":    model.Number(s.DurationSeconds),
		"NumFlows":                   model.Number(float64(s.NumFlows)),
		"MaxBandwidth_Mbps":          model.Number(s.MaxBandwidthMbps),
		"MeanBandwidth_Mbps":         model.Number(s.MeanBandwidthMbps),
		"MinBandwidth_Mbps":          model.Number(s.MinBandwidthMbps),
		"StdBandwidth_Mbps":          model.Number(s.StdBandwidthMbps),
		"MaxPacingRate_Mbps":         model.Number(s.MaxPacingRateMbps),
		"MeanPacingRate_Mbps":        model.Number(s.MeanPacingRateMbps),
		"MinRTT_ms":                  model.Number(s.MinRTTMs),
		"MaxRTT_ms":                  model.Number(s.MaxRTTMs),
		"MeanRTT_ms":                 model.Number(s.MeanRTTMs),
		"StdRTT_ms":                  model.Number(s.StdRTTMs),
		"MaxCwnd_packets":            model.Number(s.MaxCwndPackets),
		"MeanCwnd_packets":           model.Number(s.MeanCwndPackets),
		"MaxRcvWindow_bytes":         model.Number(s.MaxRcvWindowBytes),
		"MeanRcvWindow_bytes":        model.Number(s.MeanRcvWindowBytes),
		"TotalBytesAcked_bytes":      model.Number(s.TotalBytesAcked),
		"TotalBytesSent_bytes":       model.Number(s.TotalBytesSent),
		"TotalBytesReceived_bytes":   model.Number(s.TotalBytesReceived),
		"TotalRetransmissions_count": model.Number(s.TotalRetransmissions),
		"LossRate_percent":           model.Number(s.LossRatePercent),
		"MaxDeliveryRate_Mbps":       model.Number(s.MaxDeliveryRateMbps),
		"MeanDeliveryRate_Mbps":      model.Number(s.MeanDeliveryRateMbps),
		"TotalBusyTime_microseconds": model.Number(s.TotalBusyTimeMicros),
		"MaxThroughput_Mbps":         model.Number(s.MaxThroughputMbps),
		"MeanThroughput_Mbps":        model.Number(s.MeanThroughputMbps),
		"MinThroughput_Mbps":         model.Number(s.MinThroughputMbps),
		"StdThroughput_Mbps":         model.Number(s.StdThroughputMbps),
	}
}

// Summary is the session aggregate mode.
type Summary struct{}

// NewSummary creates the summary mode.
func NewSummary() *Summary {
	return &Summary{}
}

// Name returns the mode name.
func (m *Summary) Name() string {
	return ModeSummary
}

// Summarize computes the session aggregates over every sample. Missing
// fields count as zero; aggregates of an empty input are zero.
func Summarize(session *model.Session, samples []model.Sample) SessionSummary {
	n := len(samples)
	var (
		bandwidths    = make(stats.Float64Data, 0, n)
		pacingRates   = make(stats.Float64Data, 0, n)
		minRTTs       = make(stats.Float64Data, 0, n)
		rtts          = make(stats.Float64Data, 0, n)
		rttVars       = make(stats.Float64Data, 0, n)
		cwnds         = make(stats.Float64Data, 0, n)
		rcvWindows    = make(stats.Float64Data, 0, n)
		bytesAcked    = make(stats.Float64Data, 0, n)
		bytesSent     = make(stats.Float64Data, 0, n)
		bytesReceived = make(stats.Float64Data, 0, n)
		bytesRetrans  = make(stats.Float64Data, 0, n)
		retrans       = make(stats.Float64Data, 0, n)
		deliveryRates = make(stats.Float64Data, 0, n)
		busyTimes     = make(stats.Float64Data, 0, n)
		throughputs   = make(stats.Float64Data, 0, n)
	)
	anyBytesRetrans := false

	for _, s := range samples {
		bandwidths = append(bandwidths, normalizer.Mbps(s.BW.Or(0)))
		pacingRates = append(pacingRates, normalizer.Mbps(s.PacingRate.Or(0)))
		minRTTs = append(minRTTs, normalizer.Millis(s.BBRMinRTT.Or(0)))
		rtts = append(rtts, normalizer.Millis(s.RTT.Or(0)))
		rttVars = append(rttVars, normalizer.Millis(s.RTTVar.Or(0)))
		cwnds = append(cwnds, s.SndCwnd.Or(0))
		rcvWindows = append(rcvWindows, s.RcvSpace.Or(0))
		bytesAcked = append(bytesAcked, s.BytesAcked.Or(0))
		bytesSent = append(bytesSent, s.BytesSent.Or(0))
		bytesReceived = append(bytesReceived, s.BytesReceived.Or(0))
		bytesRetrans = append(bytesRetrans, s.BytesRetrans.Or(0))
		anyBytesRetrans = anyBytesRetrans || s.BytesRetrans.Valid
		retrans = append(retrans, s.Retrans.Or(0))
		deliveryRates = append(deliveryRates, normalizer.Mbps(s.DeliveryRate.Or(0)))
		busyTimes = append(busyTimes, s.BusyTime.Or(0))
		throughputs = append(throughputs, normalizer.Throughput(s))
	}

	sum := SessionSummary{
		UUID:            session.UUID,
		FileName:        session.FileName,
		DurationSeconds: sessionDuration(session),
		NumFlows:        n,

		MaxBandwidthMbps:  orZero(bandwidths.Max()),
		MeanBandwidthMbps: orZero(bandwidths.Mean()),
		MinBandwidthMbps:  orZero(bandwidths.Min()),
		StdBandwidthMbps:  orZero(bandwidths.StandardDeviationPopulation()),

		MaxPacingRateMbps:  orZero(pacingRates.Max()),
		MeanPacingRateMbps: orZero(pacingRates.Mean()),

		MinRTTMs:  orZero(minRTTs.Min()),
		MaxRTTMs:  orZero(rtts.Max()),
		MeanRTTMs: orZero(rtts.Mean()),
		StdRTTMs:  orZero(rttVars.Mean()),

		MaxCwndPackets:  orZero(cwnds.Max()),
		MeanCwndPackets: orZero(cwnds.Mean()),

		MaxRcvWindowBytes:  orZero(rcvWindows.Max()),
		MeanRcvWindowBytes: orZero(rcvWindows.Mean()),

		TotalBytesAcked:    orZero(bytesAcked.Sum()),
		TotalBytesSent:     orZero(bytesSent.Sum()),
		TotalBytesReceived: orZero(bytesReceived.Sum()),

		TotalRetransmissions: orZero(retrans.Sum()),

		MaxDeliveryRateMbps:  orZero(deliveryRates.Max()),
		MeanDeliveryRateMbps: orZero(deliveryRates.Mean()),

		TotalBusyTimeMicros: orZero(busyTimes.Sum()),

		MaxThroughputMbps:  orZero(throughputs.Max()),
		MeanThroughputMbps: orZero(throughputs.Mean()),
		MinThroughputMbps:  orZero(throughputs.Min()),
		StdThroughputMbps:  orZero(throughputs.StandardDeviationPopulation()),

		AverageBandwidth: averageBandwidth(samples),
	}
	sum.LossRatePercent = lossRate(orZero(bytesRetrans.Sum()), sum.TotalBytesSent, anyBytesRetrans)
	return sum
}

// lossRate is the share of retransmitted bytes over sent bytes, in percent.
func lossRate(retransmitted, sent float64, haveRetransData bool) float64 {
	if sent <= 0 || !haveRetransData {
		return 0
	}
	return retransmitted / sent * 100
}

// sessionDuration is EndTime - StartTime in seconds, or 0 when either is
// missing or unparsable.
func sessionDuration(session *model.Session) float64 {
	logger := log.WithField("file", session.FileName)
	if session.StartTime == nil || session.EndTime == nil {
		logger.Warn("could not calculate session duration: start or end time is missing")
		return 0
	}
	start, err := time.Parse(time.RFC3339Nano, *session.StartTime)
	if err != nil {
		logger.WithError(err).Warn("could not calculate session duration")
		return 0
	}
	end, err := time.Parse(time.RFC3339Nano, *session.EndTime)
	if err != nil {
		logger.WithError(err).Warn("could not calculate session duration")
		return 0
	}
	return end.Sub(start).Seconds()
}

// Extract implements model.Task.
func (m *Summary) Extract(session *model.Session) (*model.SessionResult, error) {
	if len(session.Measurements) == 0 {
		return nil, fmt.Errorf("%w: no server measurements", ErrEmptyResult)
	}
	sum := Summarize(session, normalizer.NormalizeAll(session.Measurements))
	return &model.SessionResult{
		UUID:     session.UUID,
		FileName: session.FileName,
		Rows:     []model.Row{sum.Row()},
		Aggregates: map[string]model.Float{
			ColAverageBandwidth: sum.AverageBandwidth,
		},
	}, nil
}
