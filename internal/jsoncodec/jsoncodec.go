// Package jsoncodec implements §4.8: strict coercion between JSON and
// interface values for the CLI's invoke front-end, decoding with
// github.com/tidwall/gjson and encoding with github.com/mailru/easyjson's
// low-allocation jwriter.
package jsoncodec

import (
	"encoding/base64"
	"math"
	"strconv"

	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"

	"github.com/mengsuenyan/fce/internal/fceerr"
	"github.com/mengsuenyan/fce/itypes"
)

// Decode parses a JSON array of argument values against sig's declared
// argument types, coercing each element strictly: a JSON number for any
// non-numeric IType, or a JSON string for a numeric IType, is rejected with
// fceerr.JsonSchemaMismatch rather than silently coerced.
func Decode(body []byte, sig itypes.FunctionSignature, reg *itypes.RecordRegistry) ([]itypes.IValue, error) {
	if !gjson.ValidBytes(body) {
		return nil, fceerr.JsonSchemaMismatch("invoke body is not valid JSON")
	}
	arr := gjson.ParseBytes(body)
	if !arr.IsArray() {
		return nil, fceerr.JsonSchemaMismatch("invoke body must be a JSON array of arguments")
	}
	elems := arr.Array()
	if len(elems) != len(sig.Arguments) {
		return nil, fceerr.JsonSchemaMismatch(
			"argument count mismatch: function expects " + strconv.Itoa(len(sig.Arguments)) + ", got " + strconv.Itoa(len(elems)))
	}
	out := make([]itypes.IValue, len(elems))
	for i, a := range sig.Arguments {
		v, err := decodeOne(elems[i], a.Type, reg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeOne(r gjson.Result, t itypes.IType, reg *itypes.RecordRegistry) (itypes.IValue, error) {
	switch t.Kind {
	case itypes.KindS8, itypes.KindS16, itypes.KindS32, itypes.KindS64:
		if r.Type != gjson.Number {
			return itypes.IValue{}, fceerr.JsonSchemaMismatch("expected a JSON number for " + t.Kind.String())
		}
		n := r.Int()
		lo, hi := signedRange(t.Kind)
		if n < lo || n > hi {
			return itypes.IValue{}, fceerr.JsonSchemaMismatch(strconv.FormatInt(n, 10) + " does not fit in " + t.Kind.String())
		}
		return signedValue(t.Kind, n), nil
	case itypes.KindU8, itypes.KindU16, itypes.KindU32, itypes.KindU64:
		if r.Type != gjson.Number || r.Num < 0 {
			return itypes.IValue{}, fceerr.JsonSchemaMismatch("expected a non-negative JSON number for " + t.Kind.String())
		}
		n := r.Uint()
		if max := unsignedMax(t.Kind); n > max {
			return itypes.IValue{}, fceerr.JsonSchemaMismatch(strconv.FormatUint(n, 10) + " does not fit in " + t.Kind.String())
		}
		return unsignedValue(t.Kind, n), nil
	case itypes.KindF32:
		if r.Type != gjson.Number {
			return itypes.IValue{}, fceerr.JsonSchemaMismatch("expected a JSON number for f32")
		}
		return itypes.F32Value(float32(r.Float())), nil
	case itypes.KindF64:
		if r.Type != gjson.Number {
			return itypes.IValue{}, fceerr.JsonSchemaMismatch("expected a JSON number for f64")
		}
		return itypes.F64Value(r.Float()), nil
	case itypes.KindString:
		if r.Type != gjson.String {
			return itypes.IValue{}, fceerr.JsonSchemaMismatch("expected a JSON string")
		}
		return itypes.StringValue(r.String()), nil
	case itypes.KindByteArray:
		if r.Type != gjson.String {
			return itypes.IValue{}, fceerr.JsonSchemaMismatch("expected a base64-encoded JSON string for byte_array")
		}
		b, err := base64.StdEncoding.DecodeString(r.String())
		if err != nil {
			return itypes.IValue{}, fceerr.JsonSchemaMismatch("invalid base64 for byte_array: " + err.Error())
		}
		return itypes.ByteArrayValue(b), nil
	case itypes.KindArray:
		if !r.IsArray() {
			return itypes.IValue{}, fceerr.JsonSchemaMismatch("expected a JSON array")
		}
		elems := r.Array()
		vals := make([]itypes.IValue, len(elems))
		for i, e := range elems {
			v, err := decodeOne(e, *t.Elem, reg)
			if err != nil {
				return itypes.IValue{}, err
			}
			vals[i] = v
		}
		return itypes.ArrayValue(vals), nil
	case itypes.KindRecord:
		if !r.IsObject() {
			return itypes.IValue{}, fceerr.JsonSchemaMismatch("expected a JSON object for record")
		}
		rt, ok := reg.Resolve(t.RecordID)
		if !ok {
			return itypes.IValue{}, fceerr.UnknownRecord(uint32(t.RecordID))
		}
		fields := make([]itypes.IValue, len(rt.Fields))
		for i, f := range rt.Fields {
			fv := r.Get(f.Name)
			if !fv.Exists() {
				return itypes.IValue{}, fceerr.JsonSchemaMismatch("record missing field " + f.Name)
			}
			v, err := decodeOne(fv, f.Type, reg)
			if err != nil {
				return itypes.IValue{}, err
			}
			fields[i] = v
		}
		return itypes.RecordValue(t.RecordID, fields), nil
	default:
		return itypes.IValue{}, fceerr.JsonSchemaMismatch("unsupported IType in decode")
	}
}

func signedRange(k itypes.Kind) (lo, hi int64) {
	switch k {
	case itypes.KindS8:
		return -128, 127
	case itypes.KindS16:
		return -32768, 32767
	case itypes.KindS32:
		return -2147483648, 2147483647
	default:
		return math.MinInt64, math.MaxInt64
	}
}

func unsignedMax(k itypes.Kind) uint64 {
	switch k {
	case itypes.KindU8:
		return 0xFF
	case itypes.KindU16:
		return 0xFFFF
	case itypes.KindU32:
		return 0xFFFFFFFF
	default:
		return math.MaxUint64
	}
}

func signedValue(k itypes.Kind, n int64) itypes.IValue {
	switch k {
	case itypes.KindS8:
		return itypes.S8Value(int8(n))
	case itypes.KindS16:
		return itypes.S16Value(int16(n))
	case itypes.KindS32:
		return itypes.S32Value(int32(n))
	default:
		return itypes.S64Value(n)
	}
}

func unsignedValue(k itypes.Kind, n uint64) itypes.IValue {
	switch k {
	case itypes.KindU8:
		return itypes.U8Value(uint8(n))
	case itypes.KindU16:
		return itypes.U16Value(uint16(n))
	case itypes.KindU32:
		return itypes.U32Value(uint32(n))
	default:
		return itypes.U64Value(n)
	}
}

// Encode renders vals (the outputs of a call, per sig.Outputs) as a JSON
// array using easyjson's jwriter for low-allocation number/string encoding.
func Encode(vals []itypes.IValue, reg *itypes.RecordRegistry) ([]byte, error) {
	w := &jwriter.Writer{}
	w.RawByte('[')
	for i, v := range vals {
		if i > 0 {
			w.RawByte(',')
		}
		if err := encodeOne(w, v, reg); err != nil {
			return nil, err
		}
	}
	w.RawByte(']')
	return w.BuildBytes()
}

func encodeOne(w *jwriter.Writer, v itypes.IValue, reg *itypes.RecordRegistry) error {
	switch v.Kind() {
	case itypes.KindS8, itypes.KindS16, itypes.KindS32, itypes.KindS64:
		w.Int64(v.AsI64())
	case itypes.KindU8, itypes.KindU16, itypes.KindU32, itypes.KindU64:
		w.Uint64(v.Unsigned())
	case itypes.KindF32:
		w.Float32(v.F32())
	case itypes.KindF64:
		w.Float64(v.F64())
	case itypes.KindString:
		w.String(v.Str())
	case itypes.KindByteArray:
		w.String(base64.StdEncoding.EncodeToString(v.Bytes()))
	case itypes.KindArray:
		w.RawByte('[')
		for i, e := range v.Elements() {
			if i > 0 {
				w.RawByte(',')
			}
			if err := encodeOne(w, e, reg); err != nil {
				return err
			}
		}
		w.RawByte(']')
	case itypes.KindRecord:
		rt, ok := reg.Resolve(v.RecordID())
		if !ok {
			return fceerr.UnknownRecord(uint32(v.RecordID()))
		}
		w.RawByte('{')
		for i, f := range rt.Fields {
			if i > 0 {
				w.RawByte(',')
			}
			w.String(f.Name)
			w.RawByte(':')
			if err := encodeOne(w, v.Fields()[i], reg); err != nil {
				return err
			}
		}
		w.RawByte('}')
	default:
		return fceerr.JsonSchemaMismatch("unsupported IValue in encode")
	}
	return nil
}
