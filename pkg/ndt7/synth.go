package ndt7

import (
	"NDT7Spectra/internal/model"
	"fmt"
	"math/rand"
	"time"
)

// SynthOptions controls the synthetic records built by Synthesize.
type SynthOptions struct {
	Measurements int
	// Interval is the time between two measurements.
	Interval time.Duration
	// BaseRate is the bottleneck bandwidth in bits/s.
	BaseRate float64
	// BaseRTT is the propagation delay.
	BaseRTT time.Duration
	// MissingRate is the probability of dropping an optional field.
	MissingRate float64
	Start       time.Time
}

// DefaultSynthOptions returns a 10 second, 25 Mbit/s download.
func DefaultSynthOptions() SynthOptions {
	return SynthOptions{
		Measurements: 40,
		Interval:     250 * time.Millisecond,
		BaseRate:     25e6,
		BaseRTT:      20 * time.Millisecond,
		MissingRate:  0.02,
		Start:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

const (
	synthMSS = 1448
	// BBR gains are fixed point with 256 meaning 1.0.
	gainUnit    = 256
	startupGain = 739
)

// probeGains is the BBR bandwidth probing cycle after startup.
var probeGains = []float64{320, 192, 256, 256, 256, 256, 256, 256}

// Synthesize builds a plausible NDT7 download record. The same rng state
// yields the same record.
func Synthesize(rng *rand.Rand, opts SynthOptions) *model.Record {
	id := fmt.Sprintf("ndt-synth_%d_%016X", opts.Start.Unix(), rng.Uint64())
	start := opts.Start.Add(time.Duration(rng.Intn(3600)) * time.Second)
	end := start.Add(time.Duration(opts.Measurements) * opts.Interval)

	opt := func(v float64) *float64 {
		if rng.Float64() < opts.MissingRate {
			return nil
		}
		return &v
	}
	val := func(v float64) *float64 { return &v }

	baseRTT := float64(opts.BaseRTT.Microseconds())
	var (
		acked, sent, retransBytes float64
		totalRetrans              float64
	)

	ms := make([]model.Measurement, 0, opts.Measurements)
	for i := 0; i < opts.Measurements; i++ {
		elapsed := float64((time.Duration(i+1) * opts.Interval).Microseconds())

		pacingGain, cwndGain := float64(startupGain), float64(startupGain)
		if i >= 3 {
			pacingGain, cwndGain = probeGains[(i-3)%len(probeGains)], 2*gainUnit
		}

		bw := opts.BaseRate * (0.85 + 0.3*rng.Float64())
		if i < 3 {
			bw *= float64(i+1) / 4
		}
		rtt := baseRTT * (1 + 0.5*rng.Float64())
		delivered := bw * opts.Interval.Seconds() / 8
		acked += delivered
		lostSegs := float64(rng.Intn(3))
		retransmits := float64(rng.Intn(2))
		retransBytes += lostSegs * synthMSS
		totalRetrans += retransmits
		inflight := float64(rng.Intn(40)+10) * synthMSS
		sent = acked + inflight + retransBytes
		cwnd := bw * rtt / 1e6 / 8 / synthMSS * cwndGain / gainUnit

		ms = append(ms, model.Measurement{
			ConnectionInfo: &model.ConnectionInfo{
				Client: "198.51.100.7:50432",
				Server: "192.0.2.10:443",
				UUID:   &id,
			},
			BBRInfo: &model.BBRInfo{
				BW:         opt(bw),
				MinRTT:     opt(baseRTT),
				PacingGain: opt(pacingGain),
				CwndGain:   opt(cwndGain),
			},
			TCPInfo: &model.TCPInfo{
				ElapsedTime:   val(elapsed),
				RTT:           opt(rtt),
				RTTVar:        opt(rtt / 4),
				MinRTT:        opt(baseRTT),
				SndCwnd:       opt(float64(int(cwnd) + 10)),
				RcvSpace:      opt(14600 * float64(1+i/4)),
				SndMSS:        val(synthMSS),
				BytesSent:     opt(sent),
				BytesReceived: opt(float64(200 + 100*i)),
				BytesAcked:    opt(acked),
				BytesRetrans:  opt(retransBytes),
				SegsIn:        opt(acked / synthMSS / 2),
				SegsOut:       opt(sent / synthMSS),
				Retransmits:   opt(retransmits),
				Retrans:       opt(lostSegs),
				TotalRetrans:  opt(totalRetrans),
				Lost:          opt(lostSegs),
				Unacked:       opt(inflight / synthMSS),
				PacingRate:    opt(bw / 8 * pacingGain / gainUnit),
				DeliveryRate:  opt(delivered / opts.Interval.Seconds()),
				BusyTime:      opt(elapsed * (0.9 + 0.1*rng.Float64())),
			},
		})
	}

	startStr := start.Format(time.RFC3339Nano)
	endStr := end.Format(time.RFC3339Nano)
	return &model.Record{Download: &model.Download{
		UUID:               &id,
		StartTime:          &startStr,
		EndTime:            &endStr,
		ServerMeasurements: &ms,
	}}
}
