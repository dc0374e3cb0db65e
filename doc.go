// Package spheresenv bridges a spheres environment onto a publish/subscribe
// topic graph so remote processes can create, destroy, and mutate spherical
// objects by message.
//
// The Client wraps a local mirror of the environment: creating an object
// publishes a spawn notification on the initialize topic, and every property
// write on a proxy object publishes on the object's per-property topic
// ({key}/{property}). The Server owns the authoritative environment: it
// subscribes to the initialize and destroy topics and, for every object that
// appears, to one topic per declared property, routing inbound messages into
// direct mutation of the authoritative object.
//
// Delivery is fire-and-forget. A caller that mutates a proxy never learns
// whether the mutation was observed remotely; consistency between mirror and
// authority is eventual and best effort.
package spheresenv
