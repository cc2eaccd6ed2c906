package sass

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// NoBarrier is the barrier id meaning that no barrier is set.
const NoBarrier = 7

const controlShift = 41

// Control is the scheduling metadata attached to every instruction.
type Control struct {
	Stall        uint8 // 4 bits
	YieldHint    bool
	WriteBarrier uint8 // 3 bits, NoBarrier if unset
	ReadBarrier  uint8 // 3 bits, NoBarrier if unset
	WaitMask     uint8 // 6 bits, one per barrier
	ReuseFlags   uint8 // 4 bits, only present in binary code
}

// DecodeControl extracts the control word from the hi half of an
// instruction.
func DecodeControl(hi uint64) Control {
	ctrl := hi >> controlShift
	return Control{
		Stall:        uint8(ctrl & 0xf),
		YieldHint:    ctrl&0x10 != 0,
		WriteBarrier: uint8((ctrl >> 5) & 0x7),
		ReadBarrier:  uint8((ctrl >> 8) & 0x7),
		WaitMask:     uint8((ctrl >> 11) & 0x3f),
		ReuseFlags:   uint8((ctrl >> 17) & 0xf),
	}
}

// Encode returns the hi half bits holding c. It is the inverse of
// DecodeControl; every bit outside the control field is zero.
func (c Control) Encode() uint64 {
	var ctrl uint64
	ctrl |= uint64(c.Stall & 0xf)
	if c.YieldHint {
		ctrl |= 0x10
	}
	ctrl |= uint64(c.WriteBarrier&0x7) << 5
	ctrl |= uint64(c.ReadBarrier&0x7) << 8
	ctrl |= uint64(c.WaitMask&0x3f) << 11
	ctrl |= uint64(c.ReuseFlags&0xf) << 17
	return ctrl << controlShift
}

// ParseControl builds a Control from its five textual fields: wait mask,
// read barrier, write barrier, yield and stall. Text never carries reuse
// flags so ReuseFlags is always zero.
func ParseControl(fields [5]string) (Control, error) {
	var c Control

	switch wm := fields[0]; {
	case wm == "--":
	case len(wm) == 2:
		v, err := strconv.ParseUint(wm, 16, 8)
		if err != nil || v > 0x3f {
			return Control{}, errors.Wrapf(ErrMalformedText, "bad wait mask %q", wm)
		}
		c.WaitMask = uint8(v)
	default:
		return Control{}, errors.Wrapf(ErrMalformedText, "bad wait mask %q", wm)
	}

	var err error
	c.ReadBarrier, err = parseBarrier(fields[1])
	if err != nil {
		return Control{}, err
	}
	c.WriteBarrier, err = parseBarrier(fields[2])
	if err != nil {
		return Control{}, err
	}

	switch fields[3] {
	case "Y":
		c.YieldHint = true
	case "-":
	default:
		return Control{}, errors.Wrapf(ErrMalformedText, "bad yield flag %q", fields[3])
	}

	if len(fields[4]) != 1 {
		return Control{}, errors.Wrapf(ErrMalformedText, "bad stall count %q", fields[4])
	}
	stall, err := strconv.ParseUint(fields[4], 16, 8)
	if err != nil {
		return Control{}, errors.Wrapf(ErrMalformedText, "bad stall count %q", fields[4])
	}
	c.Stall = uint8(stall)

	return c, nil
}

func parseBarrier(s string) (uint8, error) {
	if s == "-" {
		return NoBarrier, nil
	}
	if len(s) != 1 || s[0] < '0' || s[0] > '7' {
		return 0, errors.Wrapf(ErrMalformedText, "bad barrier %q", s)
	}
	return s[0] - '0', nil
}

// ParseControlString parses the colon separated form produced by
// Control.String, e.g. "01:-:0:Y:5".
func ParseControlString(s string) (Control, error) {
	v := strings.Split(s, ":")
	if len(v) != 5 {
		return Control{}, errors.Wrapf(ErrMalformedText, "bad control %q", s)
	}
	var fields [5]string
	copy(fields[:], v)
	return ParseControl(fields)
}

func (c Control) String() string {
	wm := "--"
	if c.WaitMask != 0 {
		wm = fmt.Sprintf("%02x", c.WaitMask)
	}
	y := "-"
	if c.YieldHint {
		y = "Y"
	}
	return fmt.Sprintf("%s:%s:%s:%s:%x", wm, barrierString(c.ReadBarrier), barrierString(c.WriteBarrier), y, c.Stall)
}

func barrierString(b uint8) string {
	if b == NoBarrier {
		return "-"
	}
	return strconv.Itoa(int(b))
}
