// Package value defines the dynamic value exchanged with the scripting runtime.
package value

import (
	"strconv"
)

// CData is a handle to a foreign-data object: the address of its header.
// The zero handle is never a live object.
type CData uint32

// Kind tags a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindNum
	KindStr
	KindCData
	KindHost
)

var kindNames = [...]string{
	KindNil:   "nil",
	KindBool:  "boolean",
	KindInt:   "integer",
	KindNum:   "number",
	KindStr:   "string",
	KindCData: "cdata",
	KindHost:  "userdata",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is the runtime's tagged value.
type Value struct {
	H    any
	S    string
	I    int64
	N    float64
	C    CData
	Kind Kind
	B    bool
}

func Nil() Value              { return Value{} }
func Bool(b bool) Value       { return Value{Kind: KindBool, B: b} }
func Int(i int64) Value       { return Value{Kind: KindInt, I: i} }
func Num(n float64) Value     { return Value{Kind: KindNum, N: n} }
func Str(s string) Value      { return Value{Kind: KindStr, S: s} }
func Box(cd CData) Value      { return Value{Kind: KindCData, C: cd} }
func Host(h any) Value        { return Value{Kind: KindHost, H: h} }
func (v Value) IsNil() bool   { return v.Kind == KindNil }
func (v Value) IsCData() bool { return v.Kind == KindCData }

// IsNumber reports integer or floating values.
func (v Value) IsNumber() bool {
	return v.Kind == KindInt || v.Kind == KindNum
}

// Float returns the numeric value as float64.
func (v Value) Float() float64 {
	if v.Kind == KindInt {
		return float64(v.I)
	}
	return v.N
}

// Integer truncates the numeric value toward zero.
func (v Value) Integer() int64 {
	if v.Kind == KindNum {
		return int64(v.N)
	}
	return v.I
}

// Truthy follows the usual dynamic-language rule: only nil and false are false.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBool:
		return v.B
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(v.B)
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindNum:
		return strconv.FormatFloat(v.N, 'g', -1, 64)
	case KindStr:
		return strconv.Quote(v.S)
	case KindCData:
		return "cdata: 0x" + strconv.FormatUint(uint64(v.C), 16)
	default:
		return v.Kind.String()
	}
}
