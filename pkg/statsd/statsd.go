// Package statsd wraps the few statsd calls the engine makes. It hides the datadog dependency so
// the rest of the module only sees phase and system timings.
package statsd

import (
	"sync"
	"sync/atomic"
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

const (
	namespace = "ecsrt."

	phaseMetric       = "phase"
	systemMetric      = "system"
	systemErrorMetric = "system.error"
)

// There is one statsd client per process. Emitters load it atomically, Init and Close swap it
// under initMu.
var (
	client  atomic.Pointer[clientBox] //nolint:gochecknoglobals // package-level client
	initMu  sync.Mutex                //nolint:gochecknoglobals // guards address and the swap in Init/Close
	address string                    //nolint:gochecknoglobals // agent address of the initialized client
)

type clientBox struct {
	c ddstatsd.ClientInterface
}

// Client returns the current client, the no-op client until Init or SetClient is called.
func Client() ddstatsd.ClientInterface {
	if box := client.Load(); box != nil {
		return box.c
	}
	return &ddstatsd.NoOpClient{}
}

// SetClient replaces the client. Passing nil restores the no-op client.
func SetClient(c ddstatsd.ClientInterface) {
	initMu.Lock()
	defer initMu.Unlock()
	if c == nil {
		c = &ddstatsd.NoOpClient{}
	}
	address = ""
	client.Store(&clientBox{c: c})
}

// EmitPhaseStat records how long one run of a phase took.
func EmitPhaseStat(start time.Time, phase string, tags ...string) {
	duration := time.Since(start)
	err := Client().Timing(phaseMetric, duration, append([]string{"phase:" + phase}, tags...), 1)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("failed to emit phase stat")
	}
}

// EmitSystemStat records how long one run of a system took, and counts failed runs.
func EmitSystemStat(system string, elapsed time.Duration, failed bool, tags ...string) {
	tags = append([]string{"system:" + system}, tags...)
	c := Client()
	if err := c.Timing(systemMetric, elapsed, tags, 1); err != nil {
		log.Logger.Warn().Err(err).Msg("failed to emit system stat")
	}
	if failed {
		if err := c.Incr(systemErrorMetric, tags, 1); err != nil {
			log.Logger.Warn().Err(err).Msg("failed to emit system error stat")
		}
	}
}

// Init connects the package client to the agent at addr. Calling it again with the same address
// keeps the existing client, so several engines in one process share it and tell their metrics
// apart by tags. A different address fails while a client is initialized.
func Init(addr string) error {
	if addr == "" {
		return eris.New("address must not be empty")
	}

	initMu.Lock()
	defer initMu.Unlock()

	if address != "" {
		if address != addr {
			return eris.Errorf("statsd is already initialized with address %s", address)
		}
		return nil
	}

	// The statsd namespace is the prefix of all metrics.
	newClient, err := ddstatsd.New(addr, ddstatsd.WithNamespace(namespace))
	if err != nil {
		return eris.Wrap(err, "failed to create statsd client")
	}
	address = addr
	client.Store(&clientBox{c: newClient})
	return nil
}

// Close flushes and closes the client, then restores the no-op client.
func Close() error {
	initMu.Lock()
	defer initMu.Unlock()

	old := client.Swap(&clientBox{c: &ddstatsd.NoOpClient{}})
	address = ""
	if old == nil {
		return nil
	}
	if err := old.c.Close(); err != nil {
		return eris.Wrap(err, "failed to close statsd client")
	}
	return nil
}
