package common

// Reply conventions of the evaluation protocol. A reply is the UTF-8 text of
// the result, or one of the markers below.
const (
	// NoReturn is the reply for statements that yield no value (assignments)
	NoReturn = "$NoReturn"
	// ErrorPrefix starts the reply of a statement that failed to evaluate. The
	// rest of the reply is the error message.
	ErrorPrefix = "$Error: "
)
