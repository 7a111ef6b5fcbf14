package ports

import "context"

//go:generate mockgen -package=mocks -destination=./mocks/mocks.go -source=./connection_set.go

// ConnectionSet is an ordered, fixed-size pool of connections to a
// homogeneous group of workers. Messages on one index are never reordered;
// there is no ordering across indexes.
type ConnectionSet interface {
	// Name identifies the pool in logs and metrics ("prediffers", "solvers").
	Name() string

	// Size returns the number of workers in the pool.
	Size() int

	// Write sends msg to the worker at index.
	Write(ctx context.Context, index int, msg []byte) error

	// WriteAll sends msg to every worker in index order and stops at the
	// first failure.
	WriteAll(ctx context.Context, msg []byte) error

	// Read blocks until the worker at index delivers its next message.
	Read(ctx context.Context, index int) ([]byte, error)
}
