// Package ports picks a local control port for the on-device instrumentation server.
//
// Concurrent test workers are dispersed across the port space by a seed derived
// from the worker id and process id; each candidate is verified with a live
// bind-and-release probe. There is no reservation: another process can still
// bind the port between the probe and the instrumentation server starting.
package ports

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Base ports for the instrumentation servers.
const (
	AndroidBasePort = 8200 // UiAutomator2 systemPort
	IOSBasePort     = 8100 // WebDriverAgent wdaLocalPort
)

// ScanWidth is how many candidates are probed before falling back to the base port.
const ScanWidth = 200

// Environment variables consulted by the allocator.
const (
	EnvOffset   = "SYSTEM_PORT_OFFSET"
	EnvWorkerID = "TEST_WORKER_ID"
)

// Lease is a port chosen for one session.
type Lease struct {
	Port    int       `json:"port"`
	BoundAt time.Time `json:"boundAt"`
	// Probed is true when Port passed a live bind probe just before being returned.
	Probed bool `json:"probed"`
}

func (l Lease) String() string {
	if l.Probed {
		return fmt.Sprintf("%d (probed %s)", l.Port, l.BoundAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("%d (unprobed)", l.Port)
}

// Allocator hands out leases. The zero value is not usable; use NewAllocator.
type Allocator struct {
	Lookup func(key string) (string, bool)
	Probe  func(port int) bool
	Width  int
	Now    func() time.Time
	PID    func() int
}

// NewAllocator returns an allocator reading the process environment and probing 127.0.0.1.
func NewAllocator() *Allocator {
	return &Allocator{
		Lookup: os.LookupEnv,
		Probe:  ProbeTCP,
		Width:  ScanWidth,
		Now:    time.Now,
		PID:    os.Getpid,
	}
}

// Allocate returns a lease. It never fails: when nothing in the scan window is
// bindable the unscanned base port is returned.
func (a *Allocator) Allocate(basePort, processSeed int) Lease {
	if offset, ok := a.explicitOffset(); ok {
		return Lease{Port: basePort + offset, BoundAt: a.Now()}
	}

	width := a.Width
	if width <= 0 {
		width = ScanWidth
	}

	start := basePort + processSeed
	for port := start; port < start+width && port <= 65535; port++ {
		if a.Probe(port) {
			return Lease{Port: port, BoundAt: a.Now(), Probed: true}
		}
	}

	return Lease{Port: basePort, BoundAt: a.Now()}
}

// Seed derives the dispersion seed: worker number plus pid modulo 97.
func (a *Allocator) Seed() int {
	worker := 0
	if id, ok := a.Lookup(EnvWorkerID); ok {
		worker = ParseWorkerID(id)
	}
	return worker + a.PID()%97
}

// Port allocates for basePort using Seed. It satisfies capability.PortSource.
func (a *Allocator) Port(basePort int) Lease {
	return a.Allocate(basePort, a.Seed())
}

func (a *Allocator) explicitOffset() (int, bool) {
	raw, ok := a.Lookup(EnvOffset)
	if !ok {
		return 0, false
	}
	return ParseOffset(raw)
}

// ParseOffset reads an explicit port offset. Only plain digits count; any
// other value is ignored by the allocator.
func ParseOffset(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	offset, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return offset, true
}

// ParseWorkerID accepts "gw3", "3" or anything else (-> 0).
func ParseWorkerID(id string) int {
	id = strings.TrimPrefix(strings.TrimSpace(id), "gw")
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ProbeTCP reports whether 127.0.0.1:port can be bound right now.
func ProbeTCP(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
