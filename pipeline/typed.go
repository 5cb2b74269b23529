package pipeline

import (
	"context"
	"fmt"

	"github.com/kbukum/datapipe/errors"
)

// As converts a record to T, returning a record error on mismatch.
func As[T any](r Record) (T, error) {
	v, ok := r.(T)
	if !ok {
		var zero T
		return zero, errors.RecordType(fmt.Sprintf("%T", zero), fmt.Sprintf("%T", r))
	}
	return v, nil
}

// MapOf adapts a typed function to a MapFunc.
func MapOf[I, O any](fn func(context.Context, I) (O, error)) MapFunc {
	return func(ctx context.Context, r Record) (Record, error) {
		in, err := As[I](r)
		if err != nil {
			return nil, err
		}
		return fn(ctx, in)
	}
}

// FilterOf adapts a typed predicate to a FilterFunc.
func FilterOf[T any](fn func(T) bool) FilterFunc {
	return func(_ context.Context, r Record) (bool, error) {
		v, err := As[T](r)
		if err != nil {
			return false, err
		}
		return fn(v), nil
	}
}

// ForEach iterates p from the start and calls fn for each record. It stops
// at the first error from the iterator or from fn.
func ForEach(ctx context.Context, p *Pipeline, fn func(context.Context, Record) error, opts ...Option) error {
	it := p.Iter(ctx, opts...)
	defer it.Close()
	for {
		r, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(ctx, r); err != nil {
			return err
		}
	}
}

// Collect runs p to the end and returns all records. On error the records
// delivered so far are returned with it.
func Collect(ctx context.Context, p *Pipeline, opts ...Option) ([]Record, error) {
	var out []Record
	err := ForEach(ctx, p, func(_ context.Context, r Record) error {
		out = append(out, r)
		return nil
	}, opts...)
	return out, err
}

// CollectAs is Collect with every record converted to T.
func CollectAs[T any](ctx context.Context, p *Pipeline, opts ...Option) ([]T, error) {
	var out []T
	err := ForEach(ctx, p, func(_ context.Context, r Record) error {
		v, err := As[T](r)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	}, opts...)
	return out, err
}
