package spheresenv

import (
	"errors"

	"github.com/ricmua/ros-spheres-environment/env"
)

var (
	// ErrNoEndpoint is returned when a client or server is operated before
	// a messaging endpoint has been bound.
	ErrNoEndpoint = errors.New("spheresenv: no messaging endpoint bound")

	// ErrNoEnvironment is returned when the server is operated before an
	// environment has been bound.
	ErrNoEnvironment = errors.New("spheresenv: no environment bound")

	// ErrObjectExists is returned when initializing a key the client
	// already mirrors.
	ErrObjectExists = errors.New("spheresenv: object already exists")

	// ErrObjectDestroyed is returned when writing through a proxy whose
	// object has been destroyed.
	ErrObjectDestroyed = errors.New("spheresenv: object destroyed")
)

// Aliases for the environment error values surfaced through the bridge API.
var (
	ErrUnknownObject   = env.ErrUnknownObject
	ErrInvalidProperty = env.ErrInvalidProperty
)
