package dialogue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/roomguard/internal/observe"
	llmmock "github.com/MrWong99/roomguard/pkg/provider/llm/mock"
	ttsmock "github.com/MrWong99/roomguard/pkg/provider/tts/mock"
)

func TestEndConversationRacingEnders(t *testing.T) {
	t.Parallel()

	gen := &llmmock.Generator{}
	spk := &ttsmock.Speaker{}
	var ends atomic.Int32
	c := NewController(gen, spk, WithOnEnd(func(Summary) { ends.Add(1) }))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.mu.Lock()
	esc := c.esc
	c.mu.Unlock()

	// Both enders grabbed the same escalation before either tore down,
	// like a watchdog timeout racing a trusted arrival.
	first := c.endConversation(esc, "timeout")
	second := c.endConversation(esc, "trusted-user-identified")

	if got := ends.Load(); got != 1 {
		t.Fatalf("end hook fired %d times, want 1", got)
	}
	if first.Reason != "timeout" {
		t.Errorf("first summary reason = %q, want timeout", first.Reason)
	}
	if second.Exchanges != first.Exchanges {
		t.Errorf("late ender summary diverges: %+v vs %+v", second, first)
	}
	if c.Active() {
		t.Error("Active() = true after teardown")
	}
}

func TestSpeakCycleSingleFlight(t *testing.T) {
	t.Parallel()

	gen := &llmmock.Generator{}
	spk := &ttsmock.Speaker{PlayDelay: 200 * time.Millisecond}
	c := NewController(gen, spk)
	esc := NewEscalation()

	go c.speakCycle(context.Background(), esc, "initial", "")
	deadline := time.Now().Add(time.Second)
	for !spk.IsPlaying() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !spk.IsPlaying() {
		t.Fatal("first cycle never reached playback")
	}

	// An overlapping cycle is dropped, not queued; its line would be
	// stale by the time it played.
	c.speakCycle(context.Background(), esc, "uncooperative", "whatever")
	if got := gen.CallCount(); got != 1 {
		t.Fatalf("generator calls = %d, want 1", got)
	}

	deadline = time.Now().Add(time.Second)
	for c.speaking.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if spoken := spk.SpokenTexts(); len(spoken) != 1 {
		t.Errorf("spoken = %v, want exactly one utterance", spoken)
	}
}

func TestSpeakCycleRecordsLatency(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("observe.NewMetrics: %v", err)
	}

	gen := &llmmock.Generator{Lines: []string{"Who are you?"}}
	spk := &ttsmock.Speaker{}
	c := NewController(gen, spk, WithMetrics(metrics))
	defer c.EndConversation("test-done")

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, name := range []string{"roomguard.llm.duration", "roomguard.tts.duration"} {
		if !histogramHasSamples(rm, name) {
			t.Errorf("metric %q has no samples after a speak cycle", name)
		}
	}
}

func histogramHasSamples(rm metricdata.ResourceMetrics, name string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				return false
			}
			for _, dp := range hist.DataPoints {
				if dp.Count > 0 {
					return true
				}
			}
		}
	}
	return false
}
