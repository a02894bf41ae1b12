package resources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSummarize(t *testing.T) {
	samples := []Sample{
		{Elapsed: 100 * time.Millisecond, CPU: []float64{10, 30}, RSS: 100},
		{Elapsed: 200 * time.Millisecond, CPU: []float64{50, 90}, RSS: 300},
	}

	u := Summarize(samples)
	assert.Equal(t, uint64(300), u.PeakRSS)
	assert.Equal(t, uint64(200), u.MeanRSS)
	assert.InDelta(t, 45.0, u.MeanCPU, 1e-9) // (20 + 70) / 2
	assert.Equal(t, 90.0, u.PeakCPU)
	assert.Equal(t, 2, u.Cores)
}

func TestSummarizeEmpty(t *testing.T) {
	u := Summarize(nil)
	assert.Zero(t, u.PeakRSS)
	assert.Zero(t, u.MeanCPU)
}

func TestNewSamplerRejectsZeroInterval(t *testing.T) {
	_, err := NewSampler(0, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestSamplerCollects(t *testing.T) {
	s, err := NewSampler(10*time.Millisecond, zap.NewNop().Sugar())
	require.NoError(t, err)

	s.Start(context.Background())
	time.Sleep(80 * time.Millisecond)
	u := s.Stop()

	assert.NotEmpty(t, u.Samples)
	assert.Positive(t, u.PeakRSS)
	assert.GreaterOrEqual(t, u.Duration, 80*time.Millisecond)
}

func TestStopWithoutStart(t *testing.T) {
	s, err := NewSampler(time.Second, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Empty(t, s.Stop().Samples)
}
