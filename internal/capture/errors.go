package capture

import "errors"

// ErrorKind classifies capture failures into the recovery classes the
// supervisor acts on.
type ErrorKind string

const (
	// KindPermissionDenied: microphone access refused. Terminal; the user
	// must re-grant and restart manually.
	KindPermissionDenied ErrorKind = "permission_denied"

	// KindSilenceTimeout: the engine gave up waiting for speech. Ignored
	// entirely, the session keeps listening.
	KindSilenceTimeout ErrorKind = "silence_timeout"

	// KindTransientClosure: the session died for a transient reason and a
	// fresh one should be opened.
	KindTransientClosure ErrorKind = "transient_closure"

	// KindBackendFatal: the remote backend failed unrecoverably.
	KindBackendFatal ErrorKind = "backend_fatal"
)

// Terminal reports whether the kind forbids automatic restart.
func (k ErrorKind) Terminal() bool {
	return k == KindPermissionDenied || k == KindBackendFatal
}

// Error is the only error type delivered on a source's event stream.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the error kind, defaulting to transient closure for
// errors that reached the stream unclassified.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransientClosure
}
