package decoder

// WithErrorUnused makes decoding fail when the source has keys that do not
// match any target field.
func WithErrorUnused(e bool) Option {
	return func(d *Decoder) {
		d.errorUnused = e
	}
}

// Option configures decoder behavior through the functional options pattern.
type Option func(*Decoder)
