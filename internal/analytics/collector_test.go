package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/kafka"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	fail   bool
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestCollectorPublishesOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 10)
	c.Start(context.Background())

	c.Track(SkillSearchEvent{Query: "go developer", RequestID: "r1"})
	c.Track(SkillSearchEvent{Query: "data analyst", RequestID: "r2"})
	c.Close()

	require.Equal(t, 2, pub.count())
	assert.Equal(t, "go developer", pub.events[0].Key)
	ev := pub.events[0].Value.(SkillSearchEvent)
	assert.Equal(t, EventSkillSearch, ev.Type)

	assert.NotPanics(t, func() { c.Track(SkillSearchEvent{Query: "late"}) })
}

func TestCollectorFlushesOnInterval(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 10)
	c.flushInterval = 10 * time.Millisecond
	c.Start(context.Background())
	defer c.Close()

	c.Track(SkillSearchEvent{Query: "q"})
	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 1)
	// Not started: the buffer fills and further events are dropped.
	c.Track(SkillSearchEvent{Query: "a"})
	c.Track(SkillSearchEvent{Query: "b"})
	c.Start(context.Background())
	c.Close()
	assert.Equal(t, 1, pub.count())
}

func TestCollectorSurvivesPublishFailure(t *testing.T) {
	pub := &recordingPublisher{fail: true}
	c := NewCollector(pub, 10)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	c.Track(SkillSearchEvent{Query: "q"})
	cancel()
	<-c.done
	assert.Zero(t, pub.count())
}
