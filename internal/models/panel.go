package models

// PowerSignal is a power command understood by the panel.
type PowerSignal string

const (
	SignalStart   PowerSignal = "start"
	SignalStop    PowerSignal = "stop"
	SignalRestart PowerSignal = "restart"
	SignalKill    PowerSignal = "kill"
)

// ParsePowerSignal validates a user supplied action name.
func ParsePowerSignal(action string) (PowerSignal, bool) {
	switch s := PowerSignal(action); s {
	case SignalStart, SignalStop, SignalRestart, SignalKill:
		return s, true
	}
	return "", false
}

// UpstreamServer is a server as listed by the panel (or node) we sync from.
type UpstreamServer struct {
	ExternalID  string
	Name        string
	Description string
	Suspended   bool
	MemoryLimit int64
	DiskLimit   int64
}

// ResourceSnapshot is the live state of one upstream server.
type ResourceSnapshot struct {
	State       string // raw upstream state, e.g. "running"
	Suspended   bool
	CPU         float64
	MemoryBytes int64
	MemoryLimit int64
	DiskBytes   int64
	NetworkRx   int64
	NetworkTx   int64
	UptimeMs    int64
}

// Status maps the upstream state onto a registry status.
func (r ResourceSnapshot) Status() string {
	if r.Suspended {
		return StatusSuspended
	}
	switch r.State {
	case "running":
		return StatusOnline
	case "starting":
		return StatusStarting
	case "stopping":
		return StatusStopping
	default:
		return StatusOffline
	}
}
