package sendstream

import "fmt"

// ParseError reports a malformed command or attribute: a bad magic header,
// an unspecified command/attribute type, or a CRC32C mismatch. No valid
// partial result is ever returned alongside a ParseError.
type ParseError struct {
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sendstream parse error at offset %d: %s", e.Offset, e.Reason)
}

// TrailingDataError reports bytes remaining in the input after an End
// command was already read.
type TrailingDataError struct {
	Remaining []byte
}

func (e *TrailingDataError) Error() string {
	return fmt.Sprintf("sendstream had %d bytes of unexpected trailing data after End", len(e.Remaining))
}

// IncompleteError reports that the input ended in the middle of a command
// or its attributes.
type IncompleteError struct{}

func (e *IncompleteError) Error() string {
	return "sendstream is incomplete"
}
