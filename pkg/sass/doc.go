// Package sass decodes the native instruction words of the Turing (sm_75)
// GPU microarchitecture.
//
// Every instruction is 16 bytes wide: a 64-bit "lo" half holding the opcode
// and operand fields and a 64-bit "hi" half whose top 23 bits carry the
// scheduler control word. Decoding never fails on an individual word; words
// that cannot be classified are returned as an UnknownInstruction that keeps
// its 16-byte slot in the stream.
//
// The opcode table is a partial reconstruction. Only the opcodes listed in
// opcodes.go are recognized and anything else is reported instead of
// guessed.
package sass
