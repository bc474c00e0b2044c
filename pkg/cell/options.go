package cell

// Op names the cell step that hit a storage or codec failure.
type Op string

const (
	OpLoad   Op = "load"
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

// ErrorHandler observes failures the cell swallows. It cannot change the
// outcome of the operation.
type ErrorHandler func(op Op, key string, err error)

// Option configures a Cell.
type Option[T any] func(*options[T])

type options[T any] struct {
	initial      T
	hasInitial   bool
	raw          bool
	serializer   Serializer[T]
	deserializer Deserializer[T]
	onError      ErrorHandler
}

// WithInitial sets the value used when the store holds nothing under the key.
// It is written to the store on construction and restored by Remove.
func WithInitial[T any](v T) Option[T] {
	return func(o *options[T]) {
		o.initial = v
		o.hasInitial = true
	}
}

// WithRaw stores string values without encoding and reads them back unparsed.
// Non-string values are still written as JSON. Takes precedence over
// WithSerializer and WithDeserializer.
func WithRaw[T any]() Option[T] {
	return func(o *options[T]) {
		o.raw = true
	}
}

// WithSerializer overrides the JSON serializer.
func WithSerializer[T any](fn Serializer[T]) Option[T] {
	return func(o *options[T]) {
		o.serializer = fn
	}
}

// WithDeserializer overrides the JSON deserializer.
func WithDeserializer[T any](fn Deserializer[T]) Option[T] {
	return func(o *options[T]) {
		o.deserializer = fn
	}
}

// WithErrorHandler registers fn to be told about swallowed failures.
func WithErrorHandler[T any](fn ErrorHandler) Option[T] {
	return func(o *options[T]) {
		o.onError = fn
	}
}

func (o *options[T]) codec() (Serializer[T], Deserializer[T]) {
	if o.raw {
		return rawSerializer[T], rawDeserializer[T]
	}
	ser, de := o.serializer, o.deserializer
	if ser == nil {
		ser = JSONSerializer[T]
	}
	if de == nil {
		de = JSONDeserializer[T]
	}
	return ser, de
}
