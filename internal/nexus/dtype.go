package nexus

import (
	"fmt"
	"strings"
)

// DType names the element type of a field.
type DType string

const (
	Uint8   DType = "uint8"
	Int8    DType = "int8"
	Uint16  DType = "uint16"
	Int16   DType = "int16"
	Uint32  DType = "uint32"
	Int32   DType = "int32"
	Uint64  DType = "uint64"
	Int64   DType = "int64"
	Float32 DType = "float32"
	Float64 DType = "float64"
	String  DType = "string"
)

var typeBytes = map[DType]int{
	Uint8:   1,
	Int8:    1,
	Uint16:  2,
	Int16:   2,
	Uint32:  4,
	Int32:   4,
	Uint64:  8,
	Int64:   8,
	Float32: 4,
	Float64: 8,
}

// NeXus type names and the loose aliases scan software writes into fielddtype.
var dtypeAliases = map[string]DType{
	"int":        Int64,
	"uint":       Uint64,
	"float":      Float64,
	"number":     Float64,
	"nx_int":     Int64,
	"nx_int8":    Int8,
	"nx_int16":   Int16,
	"nx_int32":   Int32,
	"nx_int64":   Int64,
	"nx_uint":    Uint64,
	"nx_uint8":   Uint8,
	"nx_uint16":  Uint16,
	"nx_uint32":  Uint32,
	"nx_uint64":  Uint64,
	"nx_float":   Float64,
	"nx_number":  Float64,
	"nx_float32": Float32,
	"nx_float64": Float64,
	"nx_char":    String,
	"str":        String,
}

// ParseDType resolves a dtype name such as "int32", "NX_UINT16" or "float".
func ParseDType(name string) (DType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if _, ok := typeBytes[DType(n)]; ok || DType(n) == String {
		return DType(n), nil
	}
	if dt, ok := dtypeAliases[n]; ok {
		return dt, nil
	}
	return "", fmt.Errorf("unknown dtype %q", name)
}

// Size returns the number of bytes per element, 0 for strings and unknown types.
func (d DType) Size() int {
	return typeBytes[d]
}

// Numeric reports whether d is a fixed-size numeric type.
func (d DType) Numeric() bool {
	return typeBytes[d] > 0
}

// Elements returns the product of the dimensions; 1 for a scalar shape.
func Elements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// SameShape reports whether two shapes are identical.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
