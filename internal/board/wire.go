// Package board talks to the boards of a station: the CBOR frame format,
// the per-board port, the sync actions that flush writes and collect reads
// during a round, and a simulated board for running without hardware.
package board

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Op is the frame operation.
type Op uint8

const (
	OpWrite Op = 1 // host -> board: store Values at Registers
	OpRead  Op = 2 // host -> board: return Registers
	OpAck   Op = 3 // board -> host: write applied
	OpData  Op = 4 // board -> host: read result
)

// IsValid reports whether o is a known operation.
func (o Op) IsValid() bool { return o >= OpWrite && o <= OpData }

func (o Op) String() string {
	switch o {
	case OpWrite:
		return "WRITE"
	case OpRead:
		return "READ"
	case OpAck:
		return "ACK"
	case OpData:
		return "DATA"
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Status is the result code of a reply.
type Status uint8

const (
	StatusOK          Status = 0
	StatusBadRegister Status = 1
	StatusBadRequest  Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBadRegister:
		return "BAD_REGISTER"
	case StatusBadRequest:
		return "BAD_REQUEST"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Frame is one message between host and board.
//
// CBOR encoding:
//
//	{
//	  1: seq,        // uint32: request sequence, echoed in the reply
//	  2: op,         // uint8
//	  3: registers,  // []int
//	  4: values,     // []uint32: parallel to registers
//	  5: status,     // uint8: replies only
//	  6: tick        // int64: round time in Unix seconds
//	}
type Frame struct {
	Seq       uint32   `cbor:"1,keyasint"`
	Op        Op       `cbor:"2,keyasint"`
	Registers []int    `cbor:"3,keyasint,omitempty"`
	Values    []uint32 `cbor:"4,keyasint,omitempty"`
	Status    Status   `cbor:"5,keyasint,omitempty"`
	Tick      int64    `cbor:"6,keyasint,omitempty"`
}

var ErrInvalidFrame = errors.New("invalid frame")

// Validate checks the structural rules of a frame.
func (f *Frame) Validate() error {
	if !f.Op.IsValid() {
		return fmt.Errorf("%w: unknown op %d", ErrInvalidFrame, f.Op)
	}
	switch f.Op {
	case OpWrite:
		if len(f.Registers) == 0 {
			return fmt.Errorf("%w: write without registers", ErrInvalidFrame)
		}
		if len(f.Values) != len(f.Registers) {
			return fmt.Errorf("%w: %d values for %d registers", ErrInvalidFrame, len(f.Values), len(f.Registers))
		}
	case OpRead:
		if len(f.Registers) == 0 {
			return fmt.Errorf("%w: read without registers", ErrInvalidFrame)
		}
	case OpData:
		if f.Status == StatusOK && len(f.Values) != len(f.Registers) {
			return fmt.Errorf("%w: %d values for %d registers", ErrInvalidFrame, len(f.Values), len(f.Registers))
		}
	}
	return nil
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// EncodeFrame validates and encodes f.
func EncodeFrame(f *Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(f)
}

// DecodeFrame decodes and validates a frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := decMode.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}
