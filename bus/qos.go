package bus

// Reliability selects the drop policy applied when a subscriber queue is
// full. There is no retransmission in either mode; delivery is best effort
// end to end.
type Reliability int

const (
	// ReliabilitySystemDefault defers to the graph default (drop newest).
	ReliabilitySystemDefault Reliability = iota
	// ReliabilityBestEffort drops the newest payload when the queue is full.
	ReliabilityBestEffort
	// ReliabilityReliable keeps the newest payload, evicting the oldest
	// queued one when full.
	ReliabilityReliable
)

// DefaultDepth is the subscriber queue capacity used when a QoS profile
// does not specify one.
const DefaultDepth = 10

// QoS carries the per-topic quality-of-service settings honoured by the
// graph. The drop policy is applied on the subscription side.
type QoS struct {
	Depth       int
	Reliability Reliability
}

// SystemDefault mirrors the middleware's system-default preset: default
// depth, drop-newest on overflow.
func SystemDefault() QoS {
	return QoS{Depth: DefaultDepth, Reliability: ReliabilitySystemDefault}
}

// BestEffort returns a profile that drops the newest payload on overflow.
func BestEffort() QoS {
	return QoS{Depth: DefaultDepth, Reliability: ReliabilityBestEffort}
}

// Reliable returns a profile that evicts the oldest payload on overflow.
func Reliable() QoS {
	return QoS{Depth: DefaultDepth, Reliability: ReliabilityReliable}
}

func (q QoS) depth() int {
	if q.Depth > 0 {
		return q.Depth
	}
	return DefaultDepth
}
