package sass

import "github.com/pkg/errors"

var (
	// ErrUnrecognizedOpcode is the cause of an UnknownInstruction whose
	// opcode-family selector is not in the opcode table.
	ErrUnrecognizedOpcode = errors.New("unrecognized opcode")

	// ErrUnrecognizedOperandPattern is the cause of an UnknownInstruction
	// whose opcode is known but whose operand-shape selector is not allowed
	// for it.
	ErrUnrecognizedOperandPattern = errors.New("unrecognized operand pattern")

	// ErrMalformedText is returned when textual assembly is rejected by the
	// grammar.
	ErrMalformedText = errors.New("malformed instruction text")

	// ErrInvalidBufferLength is returned when a function buffer is not a
	// whole number of instruction words.
	ErrInvalidBufferLength = errors.New("buffer length is not a multiple of 16")
)
