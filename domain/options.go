package domain

// WithCollectionMarshaller sets the marshaller used by a collection adapter to
// convert its elements.
func WithCollectionMarshaller(m Marshaller) CollectionOption {
	return func(co *CollectionOptions) {
		co.Marshaller = m
	}
}

// WithCollectionScheduler sets where a collection adapter runs its change
// listeners.
func WithCollectionScheduler(s Scheduler) CollectionOption {
	return func(co *CollectionOptions) {
		co.Scheduler = s
	}
}

// CollectionOption configures collection adapters through the functional
// options pattern.
type CollectionOption func(*CollectionOptions)

// CollectionOptions contains parameters shared by the collection adapters.
type CollectionOptions struct {
	// Marshaller converts elements to and from their native form.
	Marshaller Marshaller
	// Scheduler runs change listeners.
	Scheduler Scheduler
}

// WithResultsDecoder sets the decoder used to scan results into user types.
func WithResultsDecoder(d Decoder) ResultsOption {
	return func(ro *ResultsOptions) {
		ro.Decoder = d
	}
}

// WithResultsMarshaller sets the marshaller used to convert objects read from
// results.
func WithResultsMarshaller(m Marshaller) ResultsOption {
	return func(ro *ResultsOptions) {
		ro.Marshaller = m
	}
}

// ResultsOption configures results through the functional options pattern.
type ResultsOption func(*ResultsOptions)

// ResultsOptions contains parameters for customizing results behavior.
type ResultsOptions struct {
	// Decoder converts objects into user types.
	Decoder Decoder
	// Marshaller converts native objects into host values.
	Marshaller Marshaller
}
