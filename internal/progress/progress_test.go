package progress

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestReporter_PreservesOrder(t *testing.T) {
	r := NewReporter()
	for i := range 500 {
		r.Emit(Event{Step: fmt.Sprintf("s%d", i), Status: StatusInProgress})
	}
	r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := Collect(ctx, r.Events())
	require.Len(t, got, 500)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("s%d", i), e.Step)
	}
}

func TestReporter_EmitNeverBlocks(t *testing.T) {
	r := NewReporter()
	done := make(chan struct{})
	go func() {
		for i := range 10000 {
			r.Emit(Event{Step: fmt.Sprint(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Emit blocked without a consumer")
	}
	r.Close()

	n := 0
	for range r.Events() {
		n++
	}
	assert.Equal(t, 10000, n)
}

func TestReporter_InterleavedConsumer(t *testing.T) {
	r := NewReporter()
	var got []Event
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range r.Events() {
			got = append(got, e)
		}
	}()

	for i := range 20 {
		r.Emit(Event{Step: fmt.Sprint(i)})
		if i%5 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	r.Emit(Event{Step: StepDone, Status: StatusCompleted})
	r.Close()
	wg.Wait()

	require.Len(t, got, 21)
	assert.True(t, got[20].Terminal())
	assert.Equal(t, "0", got[0].Step)
}

func TestReporter_EmitAfterCloseDropped(t *testing.T) {
	r := NewReporter()
	r.Emit(Event{Step: "a"})
	r.Close()
	r.Emit(Event{Step: "b"})

	got := Collect(context.Background(), r.Events())
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Step)
}

func TestReporter_Abandon(t *testing.T) {
	r := NewReporter()
	r.Emit(Event{Step: "a"})
	r.Emit(Event{Step: "b"})
	r.Abandon()
	r.Emit(Event{Step: "c"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := Collect(ctx, r.Events())
	assert.LessOrEqual(t, len(got), 2)
	assert.NoError(t, ctx.Err(), "stream should close after Abandon")
}

func TestCollect_ContextDone(t *testing.T) {
	ch := make(chan Event)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, Collect(ctx, ch))
}

func TestEvent_Terminal(t *testing.T) {
	assert.True(t, Event{Step: StepDone}.Terminal())
	assert.True(t, Event{Step: StepError}.Terminal())
	assert.False(t, Event{Step: "3_campaign", Status: StatusError}.Terminal())
}

func TestRecorderAndTee(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	em := Tee(a, b, Discard)
	em.Emit(Event{Step: "1_copy", Status: StatusInProgress})
	em.Emit(Event{Step: StepDone, Status: StatusCompleted, Data: &model.RunSummary{CampaignID: "c1", LeadCount: 5}})

	require.Len(t, a.Events(), 2)
	assert.Equal(t, a.Events(), b.Events())
	assert.Equal(t, "c1", a.Events()[1].Data.CampaignID)
}
