package response

// Error pairs the HTTP status a handler answers with and the cause reported
// to the client.
type Error struct {
	Code int
	Err  error
}

func NewError(code int, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
