package tensor

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

const (
	// RankLimit is the fixed maximum number of dimensions a Shape may carry.
	RankLimit = 4

	// MaxTensors bounds the number of shapes a TensorsInfo may hold.
	MaxTensors = 16

	// MaxShapeBytes caps a single tensor's byte size at 1 TiB. Shapes above
	// it fail validation, so buffer sizing arithmetic cannot wrap.
	MaxShapeBytes = uint64(1) << 40
)

// ElementType is the scalar kind of a tensor element.
type ElementType int

const (
	ElementTypeInvalid ElementType = iota
	ElementTypeInt8
	ElementTypeUint8
	ElementTypeInt16
	ElementTypeUint16
	ElementTypeInt32
	ElementTypeUint32
	ElementTypeInt64
	ElementTypeUint64
	ElementTypeFloat32
	ElementTypeFloat64
)

var elementTypeNames = map[ElementType]string{
	ElementTypeInt8:    "int8",
	ElementTypeUint8:   "uint8",
	ElementTypeInt16:   "int16",
	ElementTypeUint16:  "uint16",
	ElementTypeInt32:   "int32",
	ElementTypeUint32:  "uint32",
	ElementTypeInt64:   "int64",
	ElementTypeUint64:  "uint64",
	ElementTypeFloat32: "float32",
	ElementTypeFloat64: "float64",
}

var elementTypeWidths = map[ElementType]int{
	ElementTypeInt8:    1,
	ElementTypeUint8:   1,
	ElementTypeInt16:   2,
	ElementTypeUint16:  2,
	ElementTypeInt32:   4,
	ElementTypeUint32:  4,
	ElementTypeInt64:   8,
	ElementTypeUint64:  8,
	ElementTypeFloat32: 4,
	ElementTypeFloat64: 8,
}

// Width returns the byte width of a single element, or 0 for an invalid type.
func (t ElementType) Width() int {
	return elementTypeWidths[t]
}

// Valid reports whether t is a known element type.
func (t ElementType) Valid() bool {
	_, ok := elementTypeWidths[t]
	return ok
}

func (t ElementType) String() string {
	if name, ok := elementTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ElementType(%d)", int(t))
}

// ParseElementType parses a type name such as "uint8" or "float32".
func ParseElementType(s string) (ElementType, error) {
	for t, name := range elementTypeNames {
		if name == s {
			return t, nil
		}
	}
	return ElementTypeInvalid, fmt.Errorf("unknown element type: %q", s)
}

// Shape describes a single tensor: a fixed-rank dimension vector and the
// element type. Unused trailing dimensions are 1, so ElementCount is always
// the plain product of all RankLimit entries.
type Shape struct {
	Dimensions [RankLimit]uint32
	Type       ElementType
}

// MakeShape builds a Shape from up to RankLimit dimensions, padding unused
// trailing dimensions with 1.
func MakeShape(t ElementType, dims ...uint32) (Shape, error) {
	if !t.Valid() {
		return Shape{}, fmt.Errorf("invalid element type: %v", t)
	}
	if len(dims) == 0 || len(dims) > RankLimit {
		return Shape{}, fmt.Errorf("shape needs 1..%d dimensions, got %d", RankLimit, len(dims))
	}
	s := Shape{Type: t}
	for i := 0; i < RankLimit; i++ {
		s.Dimensions[i] = 1
	}
	for i, d := range dims {
		if d == 0 {
			return Shape{}, fmt.Errorf("dimension %d is zero", i)
		}
		s.Dimensions[i] = d
	}
	if _, ok := s.checkedByteSize(); !ok {
		return Shape{}, fmt.Errorf("shape byte size exceeds %d bytes", MaxShapeBytes)
	}
	return s, nil
}

// Valid reports whether the shape has a known element type, no zero
// dimensions, and a byte size within MaxShapeBytes.
func (s Shape) Valid() bool {
	if !s.Type.Valid() {
		return false
	}
	for _, d := range s.Dimensions {
		if d == 0 {
			return false
		}
	}
	_, ok := s.checkedByteSize()
	return ok
}

// ElementCount returns the product of all dimensions.
func (s Shape) ElementCount() uint64 {
	count := uint64(1)
	for _, d := range s.Dimensions {
		count *= uint64(d)
	}
	return count
}

// ByteSize returns the buffer size in bytes required to hold the tensor.
// The result is meaningful only for shapes that pass Valid; validation
// rejects shapes whose size would overflow or exceed MaxShapeBytes.
func (s Shape) ByteSize() uint64 {
	return s.ElementCount() * uint64(s.Type.Width())
}

// checkedByteSize computes the byte size with overflow detection, reporting
// false when the product wraps uint64 or exceeds MaxShapeBytes.
func (s Shape) checkedByteSize() (uint64, bool) {
	size := uint64(s.Type.Width())
	for _, d := range s.Dimensions {
		hi, lo := bits.Mul64(size, uint64(d))
		if hi != 0 {
			return 0, false
		}
		size = lo
	}
	if size > MaxShapeBytes {
		return 0, false
	}
	return size, true
}

// Equal compares element type and all dimensions.
func (s Shape) Equal(other Shape) bool {
	return s == other
}

func (s Shape) String() string {
	dims := make([]string, RankLimit)
	for i, d := range s.Dimensions {
		dims[i] = strconv.FormatUint(uint64(d), 10)
	}
	return fmt.Sprintf("%s[%s]", s.Type, strings.Join(dims, ":"))
}

// ParseShape parses the textual form produced by Shape.String, e.g.
// "uint8[3:640:480:1]". Trailing dimensions may be omitted.
func ParseShape(s string) (Shape, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") {
		return Shape{}, fmt.Errorf("malformed shape %q, want type[d0:d1:...]", s)
	}
	t, err := ParseElementType(s[:open])
	if err != nil {
		return Shape{}, err
	}
	parts := strings.Split(s[open+1:len(s)-1], ":")
	dims := make([]uint32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Shape{}, fmt.Errorf("malformed dimension %q in shape %q", p, s)
		}
		dims = append(dims, uint32(v))
	}
	return MakeShape(t, dims...)
}

// TensorsInfo is an ordered sequence of 1..MaxTensors shapes.
type TensorsInfo []Shape

// Validate checks the bounds and every member shape.
func (ti TensorsInfo) Validate() error {
	if len(ti) == 0 {
		return fmt.Errorf("tensors info is empty")
	}
	if len(ti) > MaxTensors {
		return fmt.Errorf("tensors info holds %d shapes, limit is %d", len(ti), MaxTensors)
	}
	for i, s := range ti {
		if !s.Valid() {
			return fmt.Errorf("tensor %d has invalid shape %v", i, s)
		}
	}
	return nil
}

// ByteSize returns the total byte size across all member shapes.
func (ti TensorsInfo) ByteSize() uint64 {
	var total uint64
	for _, s := range ti {
		total += s.ByteSize()
	}
	return total
}

// Equal compares two sequences member by member.
func (ti TensorsInfo) Equal(other TensorsInfo) bool {
	if len(ti) != len(other) {
		return false
	}
	for i := range ti {
		if ti[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (ti TensorsInfo) Clone() TensorsInfo {
	if ti == nil {
		return nil
	}
	out := make(TensorsInfo, len(ti))
	copy(out, ti)
	return out
}

func (ti TensorsInfo) String() string {
	parts := make([]string, len(ti))
	for i, s := range ti {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}
