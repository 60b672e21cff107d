// Package results contains the default [domain.Results] implementation.
package results

import (
	"context"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/binding"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Results implements [domain.Results] over a snapshot of the objects of one
// type taken at creation.
type Results struct {
	binder     *binding.Binder
	objects    []domain.Object
	ctx        context.Context
	cancel     context.CancelCauseFunc
	dec        domain.Decoder
	marshaller domain.Marshaller
	index      int
}

// NewResults returns the objects of objectType. Asymmetric and embedded
// types cannot be queried.
func NewResults(ctx context.Context, session domain.Session, objectType string, options ...domain.ResultsOption) (domain.Results, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	objects, err := session.Objects(objectType)
	if err != nil {
		return nil, err
	}

	binder := binding.NewBinder(session)
	opts := domain.ResultsOptions{
		Decoder: decoder.NewDecoder(),
		Marshaller: binder.Marshaller(domain.PropertySchema{
			Name:       objectType,
			Type:       domain.TypeObject,
			ObjectType: objectType,
		}),
	}
	for _, option := range options {
		option(&opts)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	return &Results{
		binder:     binder,
		objects:    objects,
		ctx:        ctx,
		cancel:     cancel,
		dec:        opts.Decoder,
		marshaller: opts.Marshaller,
		index:      -1,
	}, nil
}

// Len implements [domain.Results].
func (r *Results) Len() int {
	return len(r.objects)
}

// Get implements [domain.Results].
func (r *Results) Get(index int) (any, error) {
	if err := r.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(r.objects) {
		return nil, domain.ErrIndexOutOfRange{Index: index, Size: len(r.objects)}
	}
	return r.marshaller.FromBinding(r.objects[index].Link()), nil
}

// Err implements [domain.Results].
func (r *Results) Err() error {
	return context.Cause(r.ctx)
}

// Next implements [domain.Results]. Objects deleted after the snapshot was
// taken are skipped.
func (r *Results) Next() bool {
	select {
	case <-r.ctx.Done():
		return false
	default:
	}
	for r.index+1 < len(r.objects) {
		r.index++
		if r.objects[r.index].IsValid() {
			return true
		}
	}
	return false
}

// Scan implements [domain.Results].
func (r *Results) Scan(ctx context.Context, target any) error {
	select {
	case <-r.ctx.Done():
		return context.Cause(r.ctx)
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if r.index < 0 {
		return domain.ErrScanBeforeNext
	}
	fields, err := r.binder.Fields(r.objects[r.index])
	if err != nil {
		return err
	}
	return r.dec.Decode(fields, target)
}

// Close implements [domain.Results].
func (r *Results) Close() error {
	select {
	case <-r.ctx.Done():
		return context.Cause(r.ctx)
	default:
	}
	r.cancel(domain.ErrResultsClosed)
	r.objects = nil
	return nil
}
