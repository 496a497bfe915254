package mock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// testCallback implements stt.Callback for testing
type testCallback struct {
	mu       sync.Mutex
	partials []string
	finals   []finalResult
	errors   []error
	ends     int
}

type finalResult struct {
	text       string
	confidence float64
}

func (c *testCallback) OnPartial(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partials = append(c.partials, text)
}

func (c *testCallback) OnFinal(text string, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finals = append(c.finals, finalResult{text, confidence})
}

func (c *testCallback) OnEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ends++
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *testCallback) getPartials() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.partials...)
}

func (c *testCallback) getFinals() []finalResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]finalResult{}, c.finals...)
}

func (c *testCallback) getEnds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ends
}

var script = []Utterance{
	{Partials: []string{"hello", "hello there"}, Final: "hello there world", Confidence: 0.9},
	{Partials: []string{"second"}, Final: "second answer", Confidence: 0.8},
}

func send(t *testing.T, a *Adapter, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := a.SendAudio(context.Background(), []byte("audio")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestAdapter_New(t *testing.T) {
	adapter := New()
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
	if adapter.closed {
		t.Error("expected adapter to not be closed initially")
	}
	if len(adapter.cfg.Utterances) != len(DefaultUtterances) {
		t.Errorf("expected rotated default script, got %d utterances", len(adapter.cfg.Utterances))
	}
}

func TestAdapter_ScriptedSequence(t *testing.T) {
	adapter := NewWithConfig(Config{Utterances: script})
	cb := &testCallback{}
	if err := adapter.Start(context.Background(), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	send(t, adapter, 5)

	partials := cb.getPartials()
	if len(partials) != 3 || partials[0] != "hello" || partials[2] != "second" {
		t.Errorf("unexpected partials %v", partials)
	}
	finals := cb.getFinals()
	if len(finals) != 2 {
		t.Fatalf("expected 2 finals, got %d", len(finals))
	}
	if finals[0].text != "hello there world" || finals[0].confidence != 0.9 {
		t.Errorf("unexpected first final %+v", finals[0])
	}
	if cb.getEnds() != 0 {
		t.Errorf("expected no end without EndAfter")
	}
}

func TestAdapter_ScriptExhausted_IgnoresAudio(t *testing.T) {
	adapter := NewWithConfig(Config{Utterances: script[:1]})
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	send(t, adapter, 10)

	if len(cb.getFinals()) != 1 {
		t.Errorf("expected exactly 1 final, got %d", len(cb.getFinals()))
	}
	if adapter.AudioReceived() != 3 {
		t.Errorf("expected 3 frames consumed by the script, got %d", adapter.AudioReceived())
	}
}

func TestAdapter_EndAfter(t *testing.T) {
	adapter := NewWithConfig(Config{Utterances: script, EndAfter: 1})
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	send(t, adapter, 6)

	if cb.getEnds() != 1 {
		t.Errorf("expected 1 end, got %d", cb.getEnds())
	}
	if len(cb.getFinals()) != 1 {
		t.Errorf("expected no finals after the session ended, got %d", len(cb.getFinals()))
	}
}

func TestAdapter_StartErr(t *testing.T) {
	want := errors.New("quota")
	adapter := NewWithConfig(Config{StartErr: want})

	if err := adapter.Start(context.Background(), &testCallback{}); !errors.Is(err, want) {
		t.Errorf("expected start error, got %v", err)
	}
}

func TestAdapter_Close(t *testing.T) {
	adapter := NewWithConfig(Config{Utterances: script})
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)
	send(t, adapter, 1)

	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := adapter.Close(); err != nil {
		t.Errorf("expected idempotent close, got %v", err)
	}
	if err := adapter.SendAudio(context.Background(), []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if len(cb.getFinals()) != 0 {
		t.Errorf("expected close not to finalize interim text")
	}
}

func TestAdapter_Delay(t *testing.T) {
	adapter := NewWithConfig(Config{Utterances: script, Delay: 10 * time.Millisecond})
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	send(t, adapter, 1)
	if len(cb.getPartials()) != 0 {
		t.Error("expected delayed partial not to be delivered synchronously")
	}

	time.Sleep(100 * time.Millisecond)
	if len(cb.getPartials()) != 1 {
		t.Errorf("expected delayed partial, got %v", cb.getPartials())
	}
}

func TestFactory_FreshAdapters(t *testing.T) {
	f := Factory(Config{Utterances: script})
	a1, err := f(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := f(context.Background())
	if a1 == a2 {
		t.Error("expected a new adapter per call")
	}
}
