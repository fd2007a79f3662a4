// Package decode converts raw trace values into typed domain values using
// the declared type from the symbol table. Decoding is a pure function of
// (declared type, raw value, raw bits): it has no side effects and never
// fails the surrounding reconstruction. A value that cannot be typed becomes
// an unknown value carrying the reason, because a witness with one unknown
// field is strictly more useful than no witness.
package decode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/swarmverify/witness/internal/cexerr"
	"github.com/swarmverify/witness/internal/symbols"
	"github.com/swarmverify/witness/internal/trace"
)

// Kind tags a decoded value variant.
type Kind string

const (
	// KindInt is an integer reduced into its declared (width, signedness).
	KindInt Kind = "int"
	// KindBool is a boolean literal.
	KindBool Kind = "bool"
	// KindString is an opaque string, used for rare symbolic identifiers.
	KindString Kind = "string"
	// KindArray is an ordered list of decoded elements.
	KindArray Kind = "array"
	// KindUnknown marks a value that could not be typed.
	KindUnknown Kind = "unknown"
)

// Value is a decoded domain value.
type Value struct {
	Kind Kind
	// Width and Signed describe the declared scalar type of an integer.
	Width  int
	Signed bool
	// Int holds the integer value, or 0/1 for booleans.
	Int int64
	// Str holds an opaque string value.
	Str string
	// Elems holds array and tuple elements.
	Elems []Value
	// Reason explains an unknown value.
	Reason string
}

// IntValue builds an integer value of the given declared scalar type.
func IntValue(width int, signed bool, value int64) Value {
	return Value{Kind: KindInt, Width: width, Signed: signed, Int: value}
}

// BoolValue builds a boolean value.
func BoolValue(value bool) Value {
	v := Value{Kind: KindBool, Width: 1}
	if value {
		v.Int = 1
	}
	return v
}

// Unknown builds an untyped value carrying the reason decoding failed.
func Unknown(reason string) Value {
	return Value{Kind: KindUnknown, Reason: reason}
}

// String renders the value the way the simulation trace printer does.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		if v.Int != 0 {
			return "true"
		}
		return "false"
	case KindString:
		return strconv.Quote(v.Str)
	case KindArray:
		parts := make([]string, len(v.Elems))
		for i, elem := range v.Elems {
			parts[i] = elem.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindUnknown:
		return "unknown(" + v.Reason + ")"
	}
	return "?"
}

// Decode converts one raw assignment into a typed value. Returned
// diagnostics are local: a DECODE or SCHEMA entry accompanies an unknown
// value, a DECODE_WARNING entry reports a bits/literal disagreement that was
// resolved in favor of the bits. The variable name is attached by the caller.
func Decode(decl symbols.Type, raw trace.Raw, bits trace.Bits) (Value, []*cexerr.Error) {
	switch decl.Kind {
	case symbols.KindScalar:
		return decodeScalar(decl, raw, bits)
	case symbols.KindArray, symbols.KindTuple:
		return decodeComposite(decl, raw, bits)
	}
	reason := fmt.Sprintf("unknown declared type kind %q", decl.Kind)
	return Unknown(reason), []*cexerr.Error{cexerr.New(cexerr.CodeDecode, reason)}
}

func decodeScalar(decl symbols.Type, raw trace.Raw, bits trace.Bits) (Value, []*cexerr.Error) {
	switch raw.Kind {
	case trace.RawBool:
		// The bit pattern of a boolean carries nothing extra.
		return BoolValue(raw.Bool), nil

	case trace.RawString:
		return Value{Kind: KindString, Str: raw.Literal}, nil

	case trace.RawNumber:
		return decodeNumber(decl, raw.Literal, bits)

	case trace.RawList:
		reason := fmt.Sprintf("brace list assigned to scalar of width %d", decl.Width)
		return Unknown(reason), []*cexerr.Error{cexerr.New(cexerr.CodeDecode, reason)}
	}
	reason := fmt.Sprintf("unhandled raw value kind %q", raw.Kind)
	return Unknown(reason), []*cexerr.Error{cexerr.New(cexerr.CodeDecode, reason)}
}

// decodeNumber decodes a numeric literal against a declared scalar. A
// width-matching bit pattern is the primary source of truth; the literal is
// the fallback, reduced into the representable range by modular arithmetic.
func decodeNumber(decl symbols.Type, literal string, bits trace.Bits) (Value, []*cexerr.Error) {
	fromLiteral, literalErr := reduceLiteral(decl, literal)

	if bits.Present && !bits.IsList() && len(bits.Run) == decl.Width {
		fromBits := bitsToInt(bits.Run, decl.Signed)
		if literalErr == nil && fromLiteral != fromBits {
			warning := cexerr.Newf(cexerr.CodeDecodeWarning,
				"bit pattern decodes to %d but literal %q reduces to %d; using bit pattern",
				fromBits, literal, fromLiteral)
			return IntValue(decl.Width, decl.Signed, fromBits), []*cexerr.Error{warning}
		}
		return IntValue(decl.Width, decl.Signed, fromBits), nil
	}

	if literalErr != nil {
		reason := fmt.Sprintf("unparsable numeric literal %q", literal)
		return Unknown(reason), []*cexerr.Error{cexerr.New(cexerr.CodeDecode, reason)}
	}
	return IntValue(decl.Width, decl.Signed, fromLiteral), nil
}

func decodeComposite(decl symbols.Type, raw trace.Raw, bits trace.Bits) (Value, []*cexerr.Error) {
	arity := decl.Len
	if decl.Kind == symbols.KindTuple {
		arity = len(decl.Fields)
	}

	if raw.Kind != trace.RawList {
		reason := fmt.Sprintf("scalar value assigned to %s of arity %d", decl.Kind, arity)
		return Unknown(reason), []*cexerr.Error{cexerr.New(cexerr.CodeDecode, reason)}
	}
	if len(raw.Items) != arity {
		reason := fmt.Sprintf("%s has arity %d but value has %d elements",
			decl.Kind, arity, len(raw.Items))
		return Unknown(reason), []*cexerr.Error{cexerr.New(cexerr.CodeDecode, reason)}
	}

	// A bit pattern only contributes element-wise when its shape mirrors
	// the value; otherwise each element falls back to its literal, the
	// same fallback a scalar takes on a width mismatch.
	elemBits := func(int) trace.Bits { return trace.Bits{} }
	if bits.IsList() && len(bits.Items) == arity {
		elemBits = func(i int) trace.Bits { return bits.Items[i] }
	}

	elems := make([]Value, arity)
	var diags []*cexerr.Error
	for i, item := range raw.Items {
		var elemType symbols.Type
		if decl.Kind == symbols.KindArray {
			elemType = *decl.Elem
		} else {
			elemType = decl.Fields[i]
		}
		elem, elemDiags := Decode(elemType, item, elemBits(i))
		elems[i] = elem
		diags = append(diags, elemDiags...)
	}
	return Value{Kind: KindArray, Elems: elems}, diags
}

// reduceLiteral parses an integer literal and reduces it into the
// representable range of the declared scalar: unsigned values mod 2^W,
// signed values by the same modular rule re-centered into
// [-2^(W-1), 2^(W-1)-1].
func reduceLiteral(decl symbols.Type, literal string) (int64, error) {
	parsed, err := strconv.ParseInt(literal, 10, 64)
	if err != nil {
		// Very large unsigned literals overflow int64; keep their
		// low 64 bits, which is all any width <= 64 needs.
		unsigned, uerr := strconv.ParseUint(literal, 10, 64)
		if uerr != nil {
			return 0, err
		}
		parsed = int64(unsigned)
	}

	if decl.Width == 64 {
		return parsed, nil
	}
	modulus := uint64(1) << decl.Width
	reduced := uint64(parsed) % modulus
	if decl.Signed && reduced >= modulus>>1 {
		return int64(reduced) - int64(modulus), nil
	}
	return int64(reduced), nil
}

// bitsToInt interprets a bit run, most-significant bit first: two's
// complement when signed, unsigned otherwise. The caller guarantees the run
// length equals the declared width.
func bitsToInt(run string, signed bool) int64 {
	var acc uint64
	for i := 0; i < len(run); i++ {
		acc <<= 1
		if run[i] == '1' {
			acc |= 1
		}
	}
	if signed && run[0] == '1' && len(run) < 64 {
		return int64(acc) - (int64(1) << len(run))
	}
	return int64(acc)
}

// EncodeBits renders an integer or boolean value as a bit string of its
// declared width, most-significant bit first. It is the inverse of the bit
// pattern decoding path.
func EncodeBits(v Value) (string, error) {
	switch v.Kind {
	case KindInt, KindBool:
	default:
		return "", fmt.Errorf("cannot encode %s value as bits", v.Kind)
	}
	if v.Width < 1 || v.Width > 64 {
		return "", fmt.Errorf("cannot encode width %d", v.Width)
	}
	out := make([]byte, v.Width)
	for i := 0; i < v.Width; i++ {
		bit := (uint64(v.Int) >> (v.Width - 1 - i)) & 1
		out[i] = byte('0' + bit)
	}
	return string(out), nil
}
