package ndt7

import (
	"NDT7Spectra/internal/model"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	opts := DefaultSynthOptions()
	opts.MissingRate = 0

	rec := Synthesize(rand.New(rand.NewSource(1)), opts)
	require.NotNil(t, rec.Download)
	ms := *rec.Download.ServerMeasurements
	require.Len(t, ms, opts.Measurements)

	prevAcked := 0.0
	for i, m := range ms {
		require.NotNil(t, m.TCPInfo.ElapsedTime)
		assert.Equal(t, float64((i+1)*250000), *m.TCPInfo.ElapsedTime)
		assert.GreaterOrEqual(t, *m.TCPInfo.BytesAcked, prevAcked)
		prevAcked = *m.TCPInfo.BytesAcked
	}
	assert.Equal(t, 739.0, *ms[0].BBRInfo.PacingGain)
	assert.Equal(t, 320.0, *ms[3].BBRInfo.PacingGain)

	// Same seed, same record.
	again := Synthesize(rand.New(rand.NewSource(1)), opts)
	if diff := cmp.Diff(rec, again); diff != "" {
		t.Errorf("Synthesize() is not deterministic (-first +second):\n%s", diff)
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	rec := Synthesize(rand.New(rand.NewSource(7)), DefaultSynthOptions())
	dir := t.TempDir()

	for _, name := range []string{"synth.json", "synth.json.gz"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteFile(path, rec))

		session, err := ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, *rec.Download.UUID, session.UUID)
		ignoreRaw := cmpopts.IgnoreFields(model.Measurement{}, "RawBBRInfo", "RawTCPInfo")
		if diff := cmp.Diff(*rec.Download.ServerMeasurements, session.Measurements, ignoreRaw); diff != "" {
			t.Errorf("%s: measurements mismatch (-want +got):\n%s", name, diff)
		}
		assert.NotEmpty(t, session.Measurements[0].RawTCPInfo)
	}
}
