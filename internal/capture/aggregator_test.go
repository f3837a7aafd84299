package capture

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector gathers aggregator callbacks under a lock so assertions can read
// them from the test goroutine.
type collector struct {
	mu         sync.Mutex
	interims   []string
	utterances []Utterance
	autoStops  int
}

func (c *collector) attach(a *Aggregator) {
	a.OnInterim = func(text string) {
		c.mu.Lock()
		c.interims = append(c.interims, text)
		c.mu.Unlock()
	}
	a.OnUtterance = func(u Utterance) {
		c.mu.Lock()
		c.utterances = append(c.utterances, u)
		c.mu.Unlock()
	}
	a.OnAutoStop = func() {
		c.mu.Lock()
		c.autoStops++
		c.mu.Unlock()
	}
}

func (c *collector) utteranceTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	texts := make([]string, len(c.utterances))
	for i, u := range c.utterances {
		texts[i] = u.Text
	}
	return texts
}

func (c *collector) autoStopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoStops
}

func TestAggregatorEmitsOnFinal(t *testing.T) {
	a := NewAggregator(AggregatorConfig{SilenceTimeout: time.Hour})
	c := &collector{}
	c.attach(a)

	a.Feed(Event{Type: EventStarted})
	a.Feed(Event{Type: EventInterim, Text: "buy"})
	a.Feed(Event{Type: EventInterim, Text: "buy milk"})
	a.Feed(Event{Type: EventFinal, Text: " buy milk "})

	assert.Equal(t, []string{"buy", "buy milk"}, c.interims)
	assert.Equal(t, []string{"buy milk"}, c.utteranceTexts(), "utterance text is trimmed")
}

func TestAggregatorDiscardsBlankFinal(t *testing.T) {
	a := NewAggregator(AggregatorConfig{SilenceTimeout: time.Hour})
	c := &collector{}
	c.attach(a)

	a.Feed(Event{Type: EventStarted})
	a.Feed(Event{Type: EventFinal, Text: "   "})

	assert.Empty(t, c.utteranceTexts())
}

func TestAggregatorSilenceSynthesizesFinal(t *testing.T) {
	a := NewAggregator(AggregatorConfig{SilenceTimeout: 30 * time.Millisecond})
	c := &collector{}
	c.attach(a)

	a.Feed(Event{Type: EventStarted})
	a.Feed(Event{Type: EventInterim, Text: "open calendar"})

	require.Eventually(t, func() bool { return c.autoStopCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"open calendar"}, c.utteranceTexts())
}

func TestAggregatorSwallowsLateFinalAfterSilenceStop(t *testing.T) {
	a := NewAggregator(AggregatorConfig{SilenceTimeout: 30 * time.Millisecond})
	c := &collector{}
	c.attach(a)

	a.Feed(Event{Type: EventStarted})
	a.Feed(Event{Type: EventInterim, Text: "open calendar"})
	require.Eventually(t, func() bool { return c.autoStopCount() == 1 }, time.Second, 5*time.Millisecond)

	// The recognizer delivers its own final after the synthesized stop; it
	// must not produce a duplicate utterance.
	a.Feed(Event{Type: EventFinal, Text: "open calendar"})

	assert.Equal(t, []string{"open calendar"}, c.utteranceTexts())
}

func TestAggregatorSilenceWithoutInterimEmitsNothing(t *testing.T) {
	a := NewAggregator(AggregatorConfig{SilenceTimeout: 30 * time.Millisecond})
	c := &collector{}
	c.attach(a)

	a.Feed(Event{Type: EventStarted})

	require.Eventually(t, func() bool { return c.autoStopCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, c.utteranceTexts(), "silence with no speech synthesizes a blank final, which is discarded")
}

func TestAggregatorAbortEmitsNothing(t *testing.T) {
	a := NewAggregator(AggregatorConfig{SilenceTimeout: time.Hour})
	c := &collector{}
	c.attach(a)

	a.Feed(Event{Type: EventStarted})
	a.Feed(Event{Type: EventInterim, Text: "delete everything"})
	a.Feed(Event{Type: EventError, Kind: ErrKindAborted})

	assert.Empty(t, c.utteranceTexts())
	assert.Equal(t, 0, c.autoStopCount())
}

func TestAggregatorResetDisarmsTimer(t *testing.T) {
	a := NewAggregator(AggregatorConfig{SilenceTimeout: 30 * time.Millisecond})
	c := &collector{}
	c.attach(a)

	a.Feed(Event{Type: EventStarted})
	a.Feed(Event{Type: EventInterim, Text: "half a thought"})
	a.Reset()

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, c.utteranceTexts())
	assert.Equal(t, 0, c.autoStopCount())
}

func TestAggregatorDefaultsSilenceTimeout(t *testing.T) {
	a := NewAggregator(AggregatorConfig{})
	assert.Equal(t, DefaultAggregatorConfig().SilenceTimeout, a.cfg.SilenceTimeout)
}
