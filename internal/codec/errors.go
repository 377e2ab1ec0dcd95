package codec

import "fmt"

// ErrorKind classifies why an inbound envelope was rejected.
type ErrorKind string

const (
	KindMissingHeader    ErrorKind = "MissingHeader"
	KindMissingBody      ErrorKind = "MissingBody"
	KindInvalidSignature ErrorKind = "InvalidSignature"
	KindDecryptionError  ErrorKind = "DecryptionError"
)

// ProtocolError is returned for any envelope that cannot be trusted.
// It is terminal for the event: nothing downstream should run.
type ProtocolError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func protocolErr(kind ErrorKind, msg string, err error) *ProtocolError {
	return &ProtocolError{Kind: kind, Msg: msg, Err: err}
}
