package cbor

import (
	"encoding/binary"
	"io"
	"math"
	"math/big"
	"strings"
	"unicode/utf8"
)

// breakMarkerType is the decoder-internal sentinel produced by the major-7
// subtype-31 "break" byte. It is only ever meaningful inside the element
// loop of an indefinite-length array, map or string and is never returned
// from Decode or DecodeFromBytes.
type breakMarkerType struct{}

var breakMarker = breakMarkerType{}

// TagHookFunc resolves a fully-decoded Tag into its replacement value. It is
// invoked for every semantic tag the decoder reads, after TagSharedMarker,
// TagSharedReference and TagStringRefNamespace (28, 29, 256) have already
// been handled internally. The default, installed by NewDecoder, is a
// *TagHandler built by NewTagHandler.
type TagHookFunc func(dec *Decoder, tag *Tag) (any, error)

// ObjectHookFunc post-processes every decoded Map, the way cbor2's
// object_hook does. Its return value replaces the Map in the decoded tree
// (and in the shareables table, so later TagSharedReference tags that point
// at it see the replacement).
type ObjectHookFunc func(dec *Decoder, m *Map) (any, error)

// Decoder turns a CBOR byte stream into a tree of Go values: ints, floats,
// bool, nil, string, ByteString, *List, *Map, *Set, *Tag and whatever a
// registered tag handler or object hook substitutes for them. A Decoder
// always decodes one complete value (and everything nested inside it) per
// call.
type Decoder struct {
	data   []byte
	offset int

	shareables  shareables
	shareIndex  int // -1 means no outstanding TagSharedMarker slot
	stringrefNS *stringrefNamespace
	immutable   bool

	tagHook    TagHookFunc
	objectHook ObjectHookFunc
	strErrors  string

	disableBuiltinTags bool
	defaultTagHandler  *TagHandler

	depth    int
	maxDepth int
}

// DecoderOption configures a Decoder at construction time.
type DecoderOption func(*Decoder)

// WithTagHook overrides the decoder's tag resolution entirely. Unlike
// WithTagHandler, this also replaces handling for the built-in tags (0, 1,
// 2, ...): fn is consulted for every non-structural tag the decoder sees.
func WithTagHook(fn TagHookFunc) DecoderOption {
	return func(d *Decoder) { d.tagHook = fn }
}

// WithTagHandler installs h as the decoder's default tag handler, in place
// of a freshly built NewTagHandler(). Use this to extend or override
// individual tag numbers while keeping the rest of the defaults.
func WithTagHandler(h *TagHandler) DecoderOption {
	return func(d *Decoder) { d.defaultTagHandler = h }
}

// WithObjectHook installs a post-processing hook for every decoded Map.
func WithObjectHook(fn ObjectHookFunc) DecoderOption {
	return func(d *Decoder) { d.objectHook = fn }
}

// WithStrErrors selects the policy for invalid UTF-8 in text strings: one of
// "strict", "error" (both reject) or "replace" (substitutes U+FFFD). The
// default is "strict". An unrecognized value is rejected by NewDecoder.
func WithStrErrors(mode string) DecoderOption {
	return func(d *Decoder) { d.strErrors = mode }
}

// WithDisableBuiltinTags routes tags 28, 29 and 256 through the ordinary tag
// handler/hook instead of the decoder's built-in shared-reference and
// stringref handling. The decoder can no longer resolve TagSharedReference
// or TagStringRef tags itself once this is set.
func WithDisableBuiltinTags(disable bool) DecoderOption {
	return func(d *Decoder) { d.disableBuiltinTags = disable }
}

// WithDecoderMaxNestingDepth caps recursive decode depth (arrays, maps and
// tags all count). The default is 64.
func WithDecoderMaxNestingDepth(depth int) DecoderOption {
	return func(d *Decoder) { d.maxDepth = depth }
}

// NewDecoder reads all of r into memory and returns a Decoder ready to
// produce one or more top-level values from it via repeated calls to
// Decode.
func NewDecoder(r io.Reader, opts ...DecoderOption) (*Decoder, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return newDecoder(data, opts...)
}

// NewDecoderFromBytes is a convenience constructor equivalent to
// NewDecoder(bytes.NewReader(data), opts...).
func NewDecoderFromBytes(data []byte, opts ...DecoderOption) (*Decoder, error) {
	return newDecoder(data, opts...)
}

func newDecoder(data []byte, opts ...DecoderOption) (*Decoder, error) {
	d := &Decoder{
		data:              data,
		shareIndex:        -1,
		strErrors:         "strict",
		maxDepth:          64,
		defaultTagHandler: NewTagHandler(),
	}
	for _, opt := range opts {
		opt(d)
	}
	switch d.strErrors {
	case "strict", "error", "replace":
	default:
		return nil, newArgumentError("invalid str_errors value %q (must be one of 'strict', 'error', or 'replace')", d.strErrors)
	}
	return d, nil
}

// Immutable reports whether the value currently being decoded must be safe
// to use as a map key. Tag handlers consult this to decide, for instance,
// whether TagSet should produce a Set meant to be read-only.
func (d *Decoder) Immutable() bool {
	return d.immutable
}

// BytesRemaining returns the number of undecoded bytes left in the stream.
func (d *Decoder) BytesRemaining() int {
	return len(d.data) - d.offset
}

// Decode reads and returns the next top-level CBOR value. Each call starts
// with an empty shareables table.
func (d *Decoder) Decode() (any, error) {
	d.shareables = shareables{}
	v, err := d.decode(false, false)
	if err != nil {
		return nil, err
	}
	if v == any(breakMarker) {
		return nil, ErrUnexpectedBreak
	}
	return v, nil
}

// DecodeFromBytes decodes a single complete value from buf, using this
// Decoder's shareables table, stringref namespace, tag hook and object hook,
// then restores the decoder's original byte source. This lets a tag handler
// (most commonly one resolving TagEncodedCborData) decode a nested CBOR blob
// without losing access to the enclosing document's shared-value registry.
func (d *Decoder) DecodeFromBytes(buf []byte) (any, error) {
	savedData, savedOffset := d.data, d.offset
	d.data, d.offset = buf, 0
	defer func() {
		d.data, d.offset = savedData, savedOffset
	}()
	v, err := d.decode(false, false)
	if err != nil {
		return nil, err
	}
	if v == any(breakMarker) {
		return nil, ErrUnexpectedBreak
	}
	return v, nil
}

// setShareable fills the currently outstanding TagSharedMarker slot, if any,
// and returns v unchanged so call sites can return its result directly.
func (d *Decoder) setShareable(v any) any {
	if d.shareIndex >= 0 {
		d.shareables.set(d.shareIndex, v)
	}
	return v
}

// readN consumes and returns the next n bytes, or an *EOFError carrying how
// many bytes were actually available.
func (d *Decoder) readN(n int) ([]byte, error) {
	if d.offset+n > len(d.data) {
		avail := len(d.data) - d.offset
		if avail < 0 {
			avail = 0
		}
		return nil, &EOFError{Expected: n, Actual: avail}
	}
	b := d.data[d.offset : d.offset+n]
	d.offset += n
	return b, nil
}

func (d *Decoder) readByte() (byte, error) {
	b, err := d.readN(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// readArgument decodes the additional-info argument that follows an initial
// byte, for any major type: subtypes 0-23 are the value itself, 24/25/26/27
// mean a following 1/2/4/8-byte big-endian value, and anything else (28, 29,
// 30, 31) is rejected here - callers that accept an indefinite-length marker
// (31) must check for it before calling readArgument.
func (d *Decoder) readArgument(subtype byte) (uint64, error) {
	switch {
	case subtype < byte(AdditionalInfo8Bit):
		return uint64(subtype), nil
	case subtype == byte(AdditionalInfo8Bit):
		b, err := d.readN(1)
		if err != nil {
			return 0, err
		}
		return uint64(b[0]), nil
	case subtype == byte(AdditionalInfo16Bit):
		b, err := d.readN(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint16(b)), nil
	case subtype == byte(AdditionalInfo32Bit):
		b, err := d.readN(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint32(b)), nil
	case subtype == byte(AdditionalInfo64Bit):
		b, err := d.readN(8)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(b), nil
	default:
		return 0, newValueError("unknown unsigned integer subtype 0x%x", subtype)
	}
}

// decodeLength is readArgument plus, when allowIndefinite is set, acceptance
// of subtype 31 as an indefinite-length marker.
func (d *Decoder) decodeLength(subtype byte, allowIndefinite bool) (length int64, indefinite bool, err error) {
	if subtype == byte(AdditionalInfoIndefiniteLength) && allowIndefinite {
		return 0, true, nil
	}
	v, err := d.readArgument(subtype)
	if err != nil {
		return 0, false, err
	}
	if v > math.MaxInt64 {
		return 0, false, newValueError("invalid length 0x%x", v)
	}
	return int64(v), false, nil
}

// decode is the recursive core of the decoder, mirroring the explicit
// immutable/unshared parameters a caller may need to force for this one
// value: a save-then-restore around the ambient immutable flag and shared
// index, exactly for the duration of this call and everything nested inside
// it.
func (d *Decoder) decode(forceImmutable, forceUnshared bool) (any, error) {
	if forceImmutable {
		old := d.immutable
		d.immutable = true
		defer func() { d.immutable = old }()
	}
	if forceUnshared {
		old := d.shareIndex
		d.shareIndex = -1
		defer func() { d.shareIndex = old }()
	}

	d.depth++
	if d.depth > d.maxDepth {
		d.depth--
		return nil, ErrNestingDepthExceeded
	}
	defer func() { d.depth-- }()

	b, err := d.readByte()
	if err != nil {
		return nil, err
	}
	major := MajorType(b >> 5)
	subtype := b & 0x1F

	switch major {
	case MajorTypeUnsignedInteger:
		return d.decodeUnsigned(subtype)
	case MajorTypeNegativeInteger:
		return d.decodeNegative(subtype)
	case MajorTypeByteString:
		return d.decodeByteString(subtype)
	case MajorTypeTextString:
		return d.decodeTextString(subtype)
	case MajorTypeArray:
		return d.decodeArray(subtype)
	case MajorTypeMap:
		return d.decodeMap(subtype)
	case MajorTypeTag:
		return d.decodeTag(subtype)
	default: // MajorTypeSimpleOrFloat
		return d.decodeSpecial(subtype)
	}
}

func (d *Decoder) decodeUnsigned(subtype byte) (any, error) {
	v, err := d.readArgument(subtype)
	if err != nil {
		return nil, err
	}
	var result any
	if v <= math.MaxInt64 {
		result = int64(v)
	} else {
		result = v
	}
	return d.setShareable(result), nil
}

func (d *Decoder) decodeNegative(subtype byte) (any, error) {
	v, err := d.readArgument(subtype)
	if err != nil {
		return nil, err
	}
	var result any
	if v <= math.MaxInt64 {
		result = -1 - int64(v)
	} else {
		bi := new(big.Int).SetUint64(v)
		bi.Add(bi, big.NewInt(1))
		bi.Neg(bi)
		result = bi
	}
	return d.setShareable(result), nil
}

func (d *Decoder) decodeByteString(subtype byte) (any, error) {
	length, indefinite, err := d.decodeLength(subtype, true)
	if err != nil {
		return nil, err
	}
	var raw []byte
	if indefinite {
		var buf []byte
		for {
			b, err := d.readByte()
			if err != nil {
				return nil, err
			}
			if b == breakByte {
				break
			}
			if MajorType(b>>5) != MajorTypeByteString || b&0x1F == byte(AdditionalInfoIndefiniteLength) {
				return nil, newValueError("non-bytestring found in indefinite length bytestring")
			}
			chunkLen, _, err := d.decodeLength(b&0x1F, false)
			if err != nil {
				return nil, err
			}
			chunk, err := d.readN(int(chunkLen))
			if err != nil {
				return nil, err
			}
			buf = append(buf, chunk...)
		}
		raw = buf
	} else {
		raw, err = d.readN(int(length))
		if err != nil {
			return nil, err
		}
	}
	bs := ByteString(raw)
	if !indefinite {
		d.stringrefNS.add(bs, len(raw))
	}
	return d.setShareable(bs), nil
}

// decodeChunkUTF8 converts raw bytes to a string under the decoder's
// str_errors policy.
func (d *Decoder) decodeChunkUTF8(raw []byte) (string, error) {
	if d.strErrors == "replace" {
		return strings.ToValidUTF8(string(raw), "�"), nil
	}
	if !utf8.Valid(raw) {
		return "", newValueError("invalid UTF-8 in text string")
	}
	return string(raw), nil
}

func (d *Decoder) decodeTextString(subtype byte) (any, error) {
	length, indefinite, err := d.decodeLength(subtype, true)
	if err != nil {
		return nil, err
	}
	var result string
	if indefinite {
		var sb strings.Builder
		for {
			b, err := d.readByte()
			if err != nil {
				return nil, err
			}
			if b == breakByte {
				break
			}
			if MajorType(b>>5) != MajorTypeTextString || b&0x1F == byte(AdditionalInfoIndefiniteLength) {
				return nil, newValueError("non-string found in indefinite length string")
			}
			chunkLen, _, err := d.decodeLength(b&0x1F, false)
			if err != nil {
				return nil, err
			}
			chunkBytes, err := d.readN(int(chunkLen))
			if err != nil {
				return nil, err
			}
			s, err := d.decodeChunkUTF8(chunkBytes)
			if err != nil {
				return nil, err
			}
			sb.WriteString(s)
		}
		result = sb.String()
	} else {
		raw, err := d.readN(int(length))
		if err != nil {
			return nil, err
		}
		result, err = d.decodeChunkUTF8(raw)
		if err != nil {
			return nil, err
		}
		d.stringrefNS.add(result, len(raw))
	}
	return d.setShareable(result), nil
}

func (d *Decoder) decodeArray(subtype byte) (any, error) {
	length, indefinite, err := d.decodeLength(subtype, true)
	if err != nil {
		return nil, err
	}
	lst := &List{Immutable: d.immutable}
	d.setShareable(lst)
	if indefinite {
		for {
			v, err := d.decode(false, false)
			if err != nil {
				return nil, err
			}
			if v == any(breakMarker) {
				break
			}
			lst.Items = append(lst.Items, v)
		}
	} else {
		for i := int64(0); i < length; i++ {
			v, err := d.decode(false, false)
			if err != nil {
				return nil, err
			}
			lst.Items = append(lst.Items, v)
		}
	}
	return lst, nil
}

func (d *Decoder) decodeMap(subtype byte) (any, error) {
	length, indefinite, err := d.decodeLength(subtype, true)
	if err != nil {
		return nil, err
	}
	m := newMap()
	m.Immutable = d.immutable
	d.setShareable(m)
	if indefinite {
		for {
			key, err := d.decode(true, true)
			if err != nil {
				return nil, err
			}
			if key == any(breakMarker) {
				break
			}
			value, err := d.decode(false, true)
			if err != nil {
				return nil, err
			}
			if err := m.put(key, value); err != nil {
				return nil, err
			}
		}
	} else {
		for i := int64(0); i < length; i++ {
			key, err := d.decode(true, true)
			if err != nil {
				return nil, err
			}
			value, err := d.decode(false, true)
			if err != nil {
				return nil, err
			}
			if err := m.put(key, value); err != nil {
				return nil, err
			}
		}
	}
	if d.objectHook != nil {
		v, err := d.objectHook(d, m)
		if err != nil {
			return nil, err
		}
		return d.setShareable(v), nil
	}
	return m, nil
}

func (d *Decoder) decodeTag(subtype byte) (any, error) {
	tagnum, err := d.readArgument(subtype)
	if err != nil {
		return nil, err
	}

	if !d.disableBuiltinTags {
		switch tagnum {
		case uint64(TagSharedMarker):
			old := d.shareIndex
			d.shareIndex = d.shareables.reserve()
			defer func() { d.shareIndex = old }()
			return d.decode(false, false)

		case uint64(TagSharedReference):
			idxVal, err := d.decode(false, true)
			if err != nil {
				return nil, err
			}
			idx, ok := toInt(idxVal)
			if !ok {
				return nil, newValueError("shared reference index must be an integer")
			}
			value, filled, inRange := d.shareables.get(idx)
			if !inRange {
				return nil, newValueError("shared reference %d not found", idx)
			}
			if !filled {
				return nil, newValueError("shared value %d has not been initialized", idx)
			}
			return value, nil

		case uint64(TagStringRefNamespace):
			old := d.stringrefNS
			d.stringrefNS = &stringrefNamespace{}
			defer func() { d.stringrefNS = old }()
			return d.decode(false, true)
		}
	}

	tag := &Tag{Number: tagnum}
	d.setShareable(tag)
	immutable := d.immutable || tagnum == uint64(TagSet)
	value, err := d.decode(immutable, true)
	if err != nil {
		return nil, err
	}
	tag.Value = value

	hook := d.tagHook
	if hook == nil {
		hook = d.defaultTagHandler.Handle
	}
	result, err := hook(d, tag)
	if err != nil {
		return nil, err
	}
	return d.setShareable(result), nil
}

// float16BitsToFloat32 converts IEEE 754 half-precision bits to float32.
func float16BitsToFloat32(bits uint16) float32 {
	sign := uint32(bits&0x8000) << 16
	exp := int(bits>>10) & 0x1F
	frac := uint32(bits & 0x3FF)

	switch {
	case exp == 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal
		for frac&0x400 == 0 {
			frac <<= 1
			exp--
		}
		exp++
		frac &= 0x3FF
		fallthrough
	case exp < 31:
		exp32 := uint32(exp - 15 + 127)
		return math.Float32frombits(sign | (exp32 << 23) | (frac << 13))
	default:
		// Inf or NaN
		if frac == 0 {
			return math.Float32frombits(sign | 0x7F800000)
		}
		return math.Float32frombits(sign | 0x7F800000 | (frac << 13))
	}
}

func (d *Decoder) decodeSpecial(subtype byte) (any, error) {
	switch {
	case subtype < byte(SimpleValueFalse):
		return SimpleValue(subtype), nil
	case subtype == byte(SimpleValueFalse):
		return false, nil
	case subtype == byte(SimpleValueTrue):
		return true, nil
	case subtype == byte(SimpleValueNull):
		return nil, nil
	case subtype == byte(SimpleValueUndefined):
		return Undefined, nil
	case subtype == byte(AdditionalInfo8Bit):
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		if b < 32 {
			return nil, newValueError("invalid simple value 0x%x", b)
		}
		return SimpleValue(b), nil
	case subtype == byte(AdditionalInfo16Bit):
		raw, err := d.readN(2)
		if err != nil {
			return nil, err
		}
		bits := binary.BigEndian.Uint16(raw)
		return d.setShareable(float64(float16BitsToFloat32(bits))), nil
	case subtype == byte(AdditionalInfo32Bit):
		raw, err := d.readN(4)
		if err != nil {
			return nil, err
		}
		bits := binary.BigEndian.Uint32(raw)
		return d.setShareable(float64(math.Float32frombits(bits))), nil
	case subtype == byte(AdditionalInfo64Bit):
		raw, err := d.readN(8)
		if err != nil {
			return nil, err
		}
		bits := binary.BigEndian.Uint64(raw)
		return d.setShareable(math.Float64frombits(bits)), nil
	case subtype == byte(AdditionalInfoIndefiniteLength):
		return breakMarker, nil
	default:
		return nil, newValueError("Undefined Reserved major type 7 subtype 0x%x", subtype)
	}
}
