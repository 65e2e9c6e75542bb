package privacy

// scrubbedError reports a scrubbed message while keeping the original chain
// reachable for errors.Is and errors.As.
type scrubbedError struct {
	err error
	msg string
}

func (e *scrubbedError) Error() string { return e.msg }

func (e *scrubbedError) Unwrap() error { return e.err }

// ScrubError returns err with its message passed through ScrubMessage.
// Use it on errors that are about to be logged or reported; a nil err
// stays nil.
func ScrubError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*scrubbedError); ok {
		return err
	}
	return &scrubbedError{err: err, msg: ScrubMessage(err.Error())}
}
