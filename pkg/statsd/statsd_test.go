package statsd

import (
	"sync"
	"testing"
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	ddstatsd.NoOpClient

	mu      sync.Mutex
	timings map[string][]string
	counts  map[string]int64
}

func newRecordingClient() *recordingClient {
	return &recordingClient{timings: map[string][]string{}, counts: map[string]int64{}}
}

func (c *recordingClient) Timing(name string, _ time.Duration, tags []string, _ float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timings[name] = append(c.timings[name], tags...)
	return nil
}

func (c *recordingClient) Incr(name string, _ []string, _ float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name]++
	return nil
}

// The tests below swap the package client, so they don't run in parallel.

func TestEmitStats(t *testing.T) {
	rec := newRecordingClient()
	SetClient(rec)
	t.Cleanup(func() { SetClient(nil) })

	EmitPhaseStat(time.Now(), "update", "engine:1")
	EmitSystemStat("movement", time.Millisecond, false)
	EmitSystemStat("spawner", time.Millisecond, true)

	assert.Equal(t, []string{"phase:update", "engine:1"}, rec.timings[phaseMetric])
	assert.Equal(t, []string{"system:movement", "system:spawner"}, rec.timings[systemMetric])
	assert.Equal(t, int64(1), rec.counts[systemErrorMetric])
}

func TestInit(t *testing.T) {
	t.Cleanup(func() { SetClient(nil) })

	require.Error(t, Init(""))

	require.NoError(t, Init("127.0.0.1:8125"))
	first := Client()
	_, isNoOp := first.(*ddstatsd.NoOpClient)
	assert.False(t, isNoOp)

	// The same address keeps the client, a different one is refused.
	require.NoError(t, Init("127.0.0.1:8125"))
	assert.Same(t, first, Client())
	require.Error(t, Init("127.0.0.1:9125"))
	assert.Same(t, first, Client())

	require.NoError(t, Close())
	_, isNoOp = Client().(*ddstatsd.NoOpClient)
	assert.True(t, isNoOp)

	// After Close another address can be used.
	require.NoError(t, Init("127.0.0.1:9125"))
	require.NoError(t, Close())
}

// A system stat emitted during a swap lands its timing and its error count on the same client.
func TestClient_SwapWhileEmitting(t *testing.T) {
	t.Cleanup(func() { SetClient(nil) })

	const emitters = 8
	recorders := []*recordingClient{newRecordingClient(), newRecordingClient()}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range emitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					EmitSystemStat("movement", time.Microsecond, true)
				}
			}
		}()
	}

	for i := range 1_000 {
		SetClient(recorders[i%2])
	}
	close(stop)
	wg.Wait()

	for _, rec := range recorders {
		rec.mu.Lock()
		assert.Len(t, rec.timings[systemMetric], int(rec.counts[systemErrorMetric]))
		rec.mu.Unlock()
	}
}
