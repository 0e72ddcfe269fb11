package datafile

// Option configures a location write.
type Option func(*Options)

// Options carries the attributes of an object written through
// [Location.Create]. Backends ignore what they cannot store.
type Options struct {
	// ContentType specifies the MIME type of the object
	ContentType string

	// Metadata contains user metadata stored with the object
	Metadata map[string]string

	// CacheControl sets the Cache-Control header on object stores
	CacheControl string
}

// WithContentType sets the content type of the object
func WithContentType(contentType string) Option {
	return func(o *Options) {
		o.ContentType = contentType
	}
}

// WithMetadata sets additional metadata for the object
func WithMetadata(metadata map[string]string) Option {
	return func(o *Options) {
		o.Metadata = metadata
	}
}

// WithCacheControl sets the Cache-Control header
func WithCacheControl(cacheControl string) Option {
	return func(o *Options) {
		o.CacheControl = cacheControl
	}
}

// ApplyOptions folds opts into an Options value. Locations call it from
// Create.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
