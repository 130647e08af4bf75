package ecs

import "github.com/rotisserie/eris"

var (
	// ErrNotFound is returned when an entity, component, resource or archetype row is absent
	// where one is required.
	ErrNotFound = eris.New("not found")

	// ErrAlreadyDeclared is returned when a component name is declared twice in one query.
	ErrAlreadyDeclared = eris.New("component already declared in this query")

	// ErrOutOfRange is returned when an archetype row index is outside [0, length).
	ErrOutOfRange = eris.New("index out of range")

	// ErrLockedModification is returned when a locked query is modified.
	ErrLockedModification = eris.New("query is locked and cannot be modified")

	// ErrCircularDependency is returned when system ordering constraints form a cycle.
	ErrCircularDependency = eris.New("circular dependency detected")

	// ErrUninitialized is returned when a resource or context is accessed before setup.
	ErrUninitialized = eris.New("not initialized")

	// ErrWriteRejected is returned when a value obtained with read access is mutated.
	ErrWriteRejected = eris.New("write rejected on read-only access")

	// ErrSignatureMismatch is returned when component values don't match an archetype signature.
	ErrSignatureMismatch = eris.New("components don't match archetype signature")
)
