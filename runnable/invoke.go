package runnable

import "fmt"

// Done is the completion callback handed to asynchronous runnable funcs.
// Calling it with nil or any falsy value reports success; an error reports
// that error verbatim; any other truthy value is normalized into a
// NonErrorCompletionError. Only the first call has effect.
type Done func(failure any)

// Thenable is the capability a synchronous func's return value must expose to
// be treated as a promise. Any value implementing it is handled as one,
// regardless of its concrete type: fulfillment reports success (the value is
// discarded), rejection reports the normalized reason. A value that merely
// carries a non-callable "Then" member does not satisfy the interface and
// completes the run successfully like any other return value.
type Thenable interface {
	Then(onFulfilled func(value any), onRejected func(reason any))
}

// fnKind is the sync/async classification of the user func. It is decided
// once at construction from the func's shape and never re-inspected.
type fnKind uint8

const (
	fnNone  fnKind = iota // no func supplied: permanently pending
	fnSync                // result known when the func returns
	fnAsync               // result known when the completion callback fires
)

// normalizeFn classifies a user-supplied func and wraps it behind one of two
// uniform call shapes. Accepted shapes: func(), func() error, func() any
// (thenable-capable) and func(Done). A nil fn yields fnNone.
func normalizeFn(fn any) (kind fnKind, callSync func() (any, error), callAsync func(Done), err error) {
	switch f := fn.(type) {
	case nil:
		return fnNone, nil, nil, nil
	case func():
		return fnSync, func() (any, error) {
			f()
			return nil, nil
		}, nil, nil
	case func() error:
		return fnSync, func() (any, error) {
			return nil, f()
		}, nil, nil
	case func() any:
		return fnSync, func() (any, error) {
			return f(), nil
		}, nil, nil
	case func(Done):
		return fnAsync, nil, f, nil
	default:
		return 0, nil, nil, fmt.Errorf("unsupported runnable func type %T", fn)
	}
}
