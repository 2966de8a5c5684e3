// Package traceformat describes the fixed-column trace log layouts emitted by
// reference emulators. A trace line encodes one executed instruction; the
// fields this package cares about are the program counter, the mnemonic and
// the operand effective address, each at fixed byte offsets that changed
// between tool revisions.
package traceformat

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Span is a half-open byte range [Start, End) within a trace line.
type Span struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Width returns the number of bytes the span covers.
func (s Span) Width() int { return s.End - s.Start }

func (s Span) valid() bool { return s.Start >= 0 && s.End > s.Start }

// Revision is one fixed-column layout plus the spelling of the unconditional
// jump used by test ROMs to spin forever. The jump literal is matched
// byte-for-byte, so the case convention of the revision is carried by the
// literal itself.
type Revision struct {
	Name        string `yaml:"name"`
	PC          Span   `yaml:"pc"`
	Mnemonic    Span   `yaml:"mnemonic"`
	Operand     Span   `yaml:"operand"`
	JumpLiteral string `yaml:"jump"`
}

// Built-in revisions. RevisionA is the current BSNES layout:
//
//	00e811 bpl $e80e      [00e80e] A:9901 X:0100 ... V:261 H:236 F:32
//	0      7   11          23
//
// RevisionB is the older layout: a wider gap after the program counter,
// uppercase mnemonics and the effective address three columns earlier.
var (
	RevisionA = Revision{
		Name:        "bsnes-a",
		PC:          Span{0, 6},
		Mnemonic:    Span{7, 10},
		Operand:     Span{23, 29},
		JumpLiteral: "jmp",
	}
	RevisionB = Revision{
		Name:        "bsnes-b",
		PC:          Span{0, 6},
		Mnemonic:    Span{8, 11},
		Operand:     Span{20, 26},
		JumpLiteral: "JMP",
	}
)

// Builtins returns the revisions compiled into the binary.
func Builtins() []Revision {
	return []Revision{RevisionA, RevisionB}
}

// Lookup finds a revision by name among the given revisions, falling back to
// the built-ins.
func Lookup(name string, extra []Revision) (Revision, bool) {
	for _, r := range extra {
		if r.Name == name {
			return r, true
		}
	}
	for _, r := range Builtins() {
		if r.Name == name {
			return r, true
		}
	}
	return Revision{}, false
}

// minLen is the shortest line from which all three fields can be extracted.
func (r Revision) minLen() int {
	n := r.PC.End
	if r.Mnemonic.End > n {
		n = r.Mnemonic.End
	}
	if r.Operand.End > n {
		n = r.Operand.End
	}
	return n
}

// Fields extracts the program counter, mnemonic and operand effective address
// from a raw trace line (terminator included or not). ok is false when the
// line is too short to cover all three spans; such lines never classify as
// terminal.
func (r Revision) Fields(line string) (pc, mnemonic, operand string, ok bool) {
	if len(line) < r.minLen() {
		return "", "", "", false
	}
	pc = line[r.PC.Start:r.PC.End]
	mnemonic = line[r.Mnemonic.Start:r.Mnemonic.End]
	operand = line[r.Operand.Start:r.Operand.End]
	return pc, mnemonic, operand, true
}

// Terminal reports whether the line is the terminal self-loop: an
// unconditional jump whose effective address equals its own program counter.
func (r Revision) Terminal(line string) bool {
	pc, mnemonic, operand, ok := r.Fields(line)
	return ok && mnemonic == r.JumpLiteral && pc == operand
}

// Validate checks that the revision is internally consistent.
func (r Revision) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("revision: missing name")
	}
	for _, f := range []struct {
		name string
		span Span
	}{{"pc", r.PC}, {"mnemonic", r.Mnemonic}, {"operand", r.Operand}} {
		if !f.span.valid() {
			return fmt.Errorf("revision %s: invalid %s span [%d,%d)", r.Name, f.name, f.span.Start, f.span.End)
		}
	}
	if r.JumpLiteral == "" {
		return fmt.Errorf("revision %s: missing jump literal", r.Name)
	}
	if len(r.JumpLiteral) != r.Mnemonic.Width() {
		return fmt.Errorf("revision %s: jump literal %q does not fill mnemonic span width %d",
			r.Name, r.JumpLiteral, r.Mnemonic.Width())
	}
	if r.PC.Width() != r.Operand.Width() {
		return fmt.Errorf("revision %s: pc width %d != operand width %d",
			r.Name, r.PC.Width(), r.Operand.Width())
	}
	return nil
}

// revisionsFile is the on-disk shape of a --revisions file.
type revisionsFile struct {
	Revisions []Revision `yaml:"revisions"`
}

// LoadFile reads additional named revisions from a YAML file:
//
//	revisions:
//	  - name: bsnes-patched
//	    pc: {start: 0, end: 6}
//	    mnemonic: {start: 7, end: 10}
//	    operand: {start: 23, end: 29}
//	    jump: jmp
func LoadFile(path string) ([]Revision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("traceformat: read %s: %w", path, err)
	}
	var f revisionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("traceformat: parse %s: %w", path, err)
	}
	for _, r := range f.Revisions {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("traceformat: %s: %w", path, err)
		}
	}
	return f.Revisions, nil
}
