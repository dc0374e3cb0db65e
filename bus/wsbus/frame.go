// Package wsbus carries bus traffic across process boundaries over
// WebSocket. A Relay bridges remote connections into an in-process
// bus.Graph; Dial returns a bus.Endpoint whose inbound messages are pumped
// with SpinOnce, matching the cooperative dispatch contract of the
// in-process node.
package wsbus

import "encoding/json"

const (
	opPublish     = "pub"
	opSubscribe   = "sub"
	opUnsubscribe = "unsub"
)

// frame is the wire envelope exchanged between a relay and its peers.
type frame struct {
	Op      string          `json:"op"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
