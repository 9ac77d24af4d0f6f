package event

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rlerrors "github.com/michaelscutari/romlint/internal/errors"
)

func TestSummaryCounts(t *testing.T) {
	s := NewSummary()
	s.Add(Report{System: "snes"})
	s.Add(Report{System: "snes", Diagnostics: []Diagnostic{NewDiagnostic("a", "bad")}})
	s.Add(Report{System: "gb"})
	s.AddFailure("")

	assert.Equal(t, 2, s.TotalPass())
	assert.Equal(t, 2, s.TotalFail())
	assert.Equal(t, []string{"gb", "snes", UnknownSystem}, s.Systems())
	assert.Equal(t, Counts{Pass: 1, Fail: 1}, *s.PerSystem["snes"])
	assert.Equal(t, 1, s.PerSystem[UnknownSystem].Fail)
}

func TestSummaryDurationFreezesAtEnd(t *testing.T) {
	s := NewSummary()
	s.Start = time.Now().Add(-2 * time.Second)
	s.MarkEnded()
	d := s.Duration()
	assert.GreaterOrEqual(t, d, 2*time.Second)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, d, s.Duration())
}

func TestSummaryCompression(t *testing.T) {
	s := NewSummary()
	assert.Zero(t, s.CompressionRatio())

	s.ArchiveCompressed = 25
	s.ArchiveUncompressed = 100
	assert.Equal(t, uint64(75), s.CompressionSaved())
	assert.InDelta(t, 75.0, s.CompressionRatio(), 0.001)
}

func TestSummaryJSON(t *testing.T) {
	s := NewSummary()
	s.AddSuccess("snes")
	s.MarkEnded()

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.EqualValues(t, 1, decoded["total_pass"])
	assert.EqualValues(t, 0, decoded["total_fail"])
	assert.Contains(t, decoded, "duration")
	perSystem := decoded["per_system"].(map[string]interface{})
	assert.EqualValues(t, 1, perSystem["snes"].(map[string]interface{})["pass_count"])
}

func TestDiagnosticTerminal(t *testing.T) {
	d := NewDiagnostic("x.sfc", "unknown system", "hint")
	assert.False(t, d.Terminal)
	td := d.AsTerminal()
	assert.True(t, td.Terminal)
	assert.False(t, d.Terminal)
	assert.Equal(t, []string{"hint"}, td.Hints)
}

func TestChannelOrdering(t *testing.T) {
	c := NewChannel(4)
	ctx := context.Background()

	go func() {
		for i := 0; i < 10; i++ {
			_ = c.Send(ctx, StartProgress{Index: i})
		}
		c.Close()
	}()

	var got []int
	for ev := range c.Events() {
		got = append(got, ev.(StartProgress).Index)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestChannelHangupBreaksSend(t *testing.T) {
	c := NewChannel(0)
	c.Hangup()

	err := c.Send(context.Background(), SetStatus{Path: "a"})
	require.Error(t, err)
	assert.True(t, rlerrors.IsErrorCode(err, rlerrors.ErrBrokenPipe))
}

func TestChannelSendHonoursContext(t *testing.T) {
	c := NewChannel(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Send(ctx, SetStatus{Path: "a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannelSendAfterClose(t *testing.T) {
	c := NewChannel(1)
	c.Close()
	c.Close()

	err := c.Send(context.Background(), EndProgress{Index: 0})
	require.Error(t, err)
	assert.True(t, rlerrors.IsErrorCode(err, rlerrors.ErrBrokenPipe))
}

func TestChannelLateSendersDoNotPanic(t *testing.T) {
	c := NewChannel(1)
	ctx := context.Background()
	go func() {
		for range c.Events() {
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := c.Send(ctx, EndProgress{Index: i}); err != nil {
					assert.True(t, rlerrors.IsErrorCode(err, rlerrors.ErrBrokenPipe))
					return
				}
			}
		}()
	}
	c.Close()
	wg.Wait()
}
