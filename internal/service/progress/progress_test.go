package progress

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChadR23/sentry-six/internal/models"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.DiscardHandler))
}

func TestStreamOrdering(t *testing.T) {
	s := testHub().Stream("job1")
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Publish(KindProgress, 10, Message{Key: "progress.rendering"}, models.KindNone)
	s.Publish(KindDashboardProgress, 50, Message{}, models.KindNone)
	s.Publish(KindProgress, 20, Message{}, models.KindNone)
	s.Publish(KindComplete, 100, Message{Key: "progress.complete"}, models.KindNone)

	var got []Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 4)
	for i, ev := range got {
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.Equal(t, "job1", ev.JobID)
	}
	assert.Equal(t, KindDashboardProgress, got[1].Kind)
	assert.True(t, got[3].Terminal())
}

func TestStreamTerminalClosesSubscribers(t *testing.T) {
	s := testHub().Stream("job1")
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Publish(KindComplete, 100, Message{}, models.KindFFmpegRuntime)

	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, models.KindFFmpegRuntime, ev.Error)

	_, ok = <-ch
	assert.False(t, ok, "channel closes after terminal event")

	// Publishing after termination is a no-op.
	s.Publish(KindProgress, 10, Message{}, models.KindNone)
	assert.Equal(t, KindComplete, s.Last().Kind)
}

func TestLateSubscriberGetsTerminalEvent(t *testing.T) {
	s := testHub().Stream("job1")
	s.Publish(KindProgress, 50, Message{}, models.KindNone)
	s.Publish(KindComplete, 100, Message{}, models.KindNone)

	ch, cancel := s.Subscribe()
	defer cancel()

	ev, ok := <-ch
	require.True(t, ok)
	assert.True(t, ev.Terminal())
	_, ok = <-ch
	assert.False(t, ok)
}

func TestSlowSubscriberAlwaysGetsTerminal(t *testing.T) {
	s := testHub().Stream("job1")
	ch, cancel := s.Subscribe()
	defer cancel()

	// Overflow the buffer without consuming.
	for i := 0; i < subscriberBuffer*2; i++ {
		s.Publish(KindProgress, float64(i), Message{}, models.KindNone)
	}
	s.Publish(KindComplete, 100, Message{}, models.KindNone)

	var last Event
	for ev := range ch {
		last = ev
	}
	assert.True(t, last.Terminal(), "terminal event survives buffer pressure")
}

func TestHubIsolatesJobs(t *testing.T) {
	h := testHub()
	a := h.Stream("a")
	bCh, cancel := h.Stream("b").Subscribe()
	defer cancel()

	a.Publish(KindProgress, 10, Message{}, models.KindNone)

	select {
	case ev := <-bCh:
		t.Fatalf("job b received job a's event: %+v", ev)
	default:
	}

	assert.Same(t, a, h.Stream("a"), "stream is stable per job")
	h.Remove("a")
	assert.NotSame(t, a, h.Stream("a"))
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	s := testHub().Stream("job1")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel := s.Subscribe()
			defer cancel()
			for range ch {
			}
		}()
	}

	for i := 0; i < 100; i++ {
		s.Publish(KindProgress, float64(i), Message{}, models.KindNone)
	}
	s.Publish(KindComplete, 100, Message{}, models.KindNone)
	wg.Wait()

	assert.Equal(t, uint64(101), s.Last().Seq)
}
