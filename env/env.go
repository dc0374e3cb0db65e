// Package env models a virtual environment in which named spherical objects
// occupy a 3-D space. The environment is a keyed mapping of objects; each
// object carries a closed set of declared properties. The package owns no
// networking: it is the authoritative data model that the bridge mutates.
package env

import (
	"fmt"
	"sort"
)

// TypeSphere is the object type registered by default.
const TypeSphere = "sphere"

// ObjectFactory constructs an object of one registered type.
type ObjectFactory func(key string) Object

// Environment is a keyed collection of objects. Mutation is expected to
// happen from a single dispatch goroutine; the environment does not lock.
type Environment struct {
	objects     map[string]Object
	types       map[string]ObjectFactory
	defaultType string
	onUpdate    func()
}

// New returns an empty environment with the sphere type registered as the
// default object type.
func New() *Environment {
	e := &Environment{
		objects: make(map[string]Object),
		types:   make(map[string]ObjectFactory),
	}
	e.RegisterType(TypeSphere, func(key string) Object { return NewSphere(key) })
	return e
}

// RegisterType registers a factory under a type key. The first registered
// type becomes the default used when no type hint is supplied.
func (e *Environment) RegisterType(typeKey string, factory ObjectFactory) {
	if e.defaultType == "" {
		e.defaultType = typeKey
	}
	e.types[typeKey] = factory
}

// SetUpdateHook installs the no-argument hook invoked by Update.
func (e *Environment) SetUpdateHook(fn func()) {
	e.onUpdate = fn
}

// Update signals that the environment changed. The notification is
// whole-environment, not scoped to any object or property.
func (e *Environment) Update() {
	if e.onUpdate != nil {
		e.onUpdate()
	}
}

// InitializeObject creates an object under key. An empty type hint selects
// the default type. Initializing a key that already exists returns the
// existing object unchanged.
func (e *Environment) InitializeObject(key, typeKey string) (Object, error) {
	if obj, ok := e.objects[key]; ok {
		return obj, nil
	}
	if typeKey == "" {
		typeKey = e.defaultType
	}
	factory, ok := e.types[typeKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeKey)
	}
	obj := factory(key)
	e.objects[key] = obj
	return obj, nil
}

// DeleteObject removes the object under key.
func (e *Environment) DeleteObject(key string) error {
	if _, ok := e.objects[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownObject, key)
	}
	delete(e.objects, key)
	return nil
}

// Object returns the object under key.
func (e *Environment) Object(key string) (Object, bool) {
	obj, ok := e.objects[key]
	return obj, ok
}

// Contains reports whether key is present.
func (e *Environment) Contains(key string) bool {
	_, ok := e.objects[key]
	return ok
}

// Keys returns the present object keys in sorted order.
func (e *Environment) Keys() []string {
	keys := make([]string, 0, len(e.objects))
	for key := range e.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of objects present.
func (e *Environment) Len() int {
	return len(e.objects)
}
