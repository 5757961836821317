package cbor

import (
	"math/big"
	"net/mail"
	"net/netip"
	"regexp"
	"strings"
	"time"

	uuid "github.com/satori/go.uuid"
)

// TagHandlerFunc resolves a fully-decoded Tag (its Number and Value are both
// populated) into the value that should replace it in the decoded tree. dec
// is supplied so that a handler can consult decoder-level context such as
// Immutable() (the way TagSet needs to, to decide between a mutable and an
// immutable Set) or reach into the active stringref namespace.
type TagHandlerFunc func(dec *Decoder, tag *Tag) (any, error)

// TagHandler is a mutable table of TagHandlerFunc entries keyed by
// tag number. A Decoder consults one via its Handle method for every tag it
// decodes that isn't one of the three built-in structural tags (28, 29,
// 256). Callers may register additional tags or override any of the
// defaults; an unrecognized tag number is passed through unchanged as *Tag.
type TagHandler struct {
	handlers map[uint64]TagHandlerFunc
}

// NewTagHandler returns a TagHandler pre-populated with the default
// handlers for tags 0, 1, 2, 3, 4, 5, 25, 30, 35, 36, 37, 258, 260, 261 and
// 55799.
func NewTagHandler() *TagHandler {
	h := &TagHandler{handlers: make(map[uint64]TagHandlerFunc)}
	h.handlers[uint64(TagDateTimeString)] = handleISODateTime
	h.handlers[uint64(TagUnixTime)] = handleEpochDateTime
	h.handlers[uint64(TagUnsignedBignum)] = handleBigInt
	h.handlers[uint64(TagNegativeBignum)] = handleNegBigInt
	h.handlers[uint64(TagDecimalFraction)] = handleDecimalFraction
	h.handlers[uint64(TagBigFloat)] = handleBigFloatTag
	h.handlers[uint64(TagStringRef)] = handleStringRef
	h.handlers[uint64(TagRational)] = handleRational
	h.handlers[uint64(TagRegularExpression)] = handleRegexp
	h.handlers[uint64(TagMIMEMessage)] = handleMIME
	h.handlers[uint64(TagUUID)] = handleUUID
	h.handlers[uint64(TagSet)] = handleSet
	h.handlers[uint64(TagIPAddress)] = handleIPAddress
	h.handlers[uint64(TagIPNetwork)] = handleIPNetwork
	h.handlers[uint64(TagSelfDescribedCbor)] = handleSelfDescribe
	return h
}

// Register adds or overrides the handler for a given tag number.
func (h *TagHandler) Register(tagNumber uint64, fn TagHandlerFunc) {
	h.handlers[tagNumber] = fn
}

// Handle resolves tag using the registered handler for tag.Number, or
// returns tag unchanged if none is registered.
func (h *TagHandler) Handle(dec *Decoder, tag *Tag) (any, error) {
	fn, ok := h.handlers[tag.Number]
	if !ok {
		return tag, nil
	}
	return fn(dec, tag)
}

func handleISODateTime(_ *Decoder, tag *Tag) (any, error) {
	s, ok := tag.Value.(string)
	if !ok {
		return nil, newValueError("Incorrect tag 0 payload")
	}
	s = strings.Replace(s, "Z", "+00:00", 1)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, newValueError("Invalid isoformat string: %q", s)
	}
	return t, nil
}

func handleEpochDateTime(_ *Decoder, tag *Tag) (any, error) {
	switch v := tag.Value.(type) {
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case uint64:
		return time.Unix(int64(v), 0).UTC(), nil
	case float64:
		sec := int64(v)
		nsec := int64((v - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), nil
	default:
		return nil, newValueError("Incorrect tag 1 payload")
	}
}

func bignumBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case ByteString:
		return b.Bytes(), true
	case string:
		return []byte(b), true
	default:
		return nil, false
	}
}

func handleBigInt(_ *Decoder, tag *Tag) (any, error) {
	b, ok := bignumBytes(tag.Value)
	if !ok {
		return nil, newValueError("Incorrect tag 2 payload")
	}
	return new(big.Int).SetBytes(b), nil
}

func handleNegBigInt(_ *Decoder, tag *Tag) (any, error) {
	b, ok := bignumBytes(tag.Value)
	if !ok {
		return nil, newValueError("Incorrect tag 3 payload")
	}
	n := new(big.Int).SetBytes(b)
	n.Add(n, big.NewInt(1))
	n.Neg(n)
	return n, nil
}

func pairAsBigInts(v any) (*big.Int, *big.Int, bool) {
	l, ok := v.(*List)
	if !ok || len(l.Items) != 2 {
		return nil, nil, false
	}
	a, aok := toBigInt(l.Items[0])
	b, bok := toBigInt(l.Items[1])
	if !aok || !bok {
		return nil, nil, false
	}
	return a, b, true
}

func toBigInt(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case int64:
		return big.NewInt(n), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case *big.Int:
		return n, true
	default:
		return nil, false
	}
}

func handleDecimalFraction(_ *Decoder, tag *Tag) (any, error) {
	exp, mant, ok := pairAsBigInts(tag.Value)
	if !ok {
		return nil, newValueError("Incorrect tag 4 payload")
	}
	return &Decimal{Exponent: exp.Int64(), Mantissa: mant}, nil
}

func handleBigFloatTag(_ *Decoder, tag *Tag) (any, error) {
	exp, mant, ok := pairAsBigInts(tag.Value)
	if !ok {
		return nil, newValueError("Incorrect tag 5 payload")
	}
	return &BigFloat{Exponent: exp.Int64(), Mantissa: mant}, nil
}

func handleStringRef(dec *Decoder, tag *Tag) (any, error) {
	idx, ok := toInt(tag.Value)
	if !ok {
		return nil, newValueError("Incorrect tag 25 payload")
	}
	if dec.stringrefNS == nil {
		return nil, newValueError("string reference outside of namespace")
	}
	value, found := dec.stringrefNS.get(idx)
	if !found {
		return nil, newValueError("string reference %d not found", idx)
	}
	return value, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

func handleRational(_ *Decoder, tag *Tag) (any, error) {
	num, denom, ok := pairAsBigInts(tag.Value)
	if !ok {
		return nil, newValueError("Incorrect tag 30 payload")
	}
	if denom.Sign() == 0 {
		return nil, newValueError("Incorrect tag 30 payload")
	}
	return new(big.Rat).SetFrac(num, denom), nil
}

func handleRegexp(_ *Decoder, tag *Tag) (any, error) {
	s, ok := tag.Value.(string)
	if !ok {
		return nil, newValueError("Incorrect tag 35 payload")
	}
	re, err := regexp.Compile(s)
	if err != nil {
		return nil, newValueError("Incorrect tag 35 payload: %v", err)
	}
	return re, nil
}

func handleMIME(_ *Decoder, tag *Tag) (any, error) {
	s, ok := tag.Value.(string)
	if !ok {
		return nil, newValueError("Incorrect tag 36 payload")
	}
	msg, err := mail.ReadMessage(strings.NewReader(s))
	if err != nil {
		return nil, newValueError("Incorrect tag 36 payload: %v", err)
	}
	return msg, nil
}

func handleUUID(_ *Decoder, tag *Tag) (any, error) {
	b, ok := bignumBytes(tag.Value)
	if !ok || len(b) != 16 {
		return nil, newValueError("Incorrect tag 37 payload")
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		return nil, newValueError("Incorrect tag 37 payload: %v", err)
	}
	return id, nil
}

func handleSet(dec *Decoder, tag *Tag) (any, error) {
	l, ok := tag.Value.(*List)
	if !ok {
		return nil, newValueError("Incorrect tag 258 payload")
	}
	return newSet(l.Items, dec.Immutable()), nil
}

func handleIPAddress(_ *Decoder, tag *Tag) (any, error) {
	b, ok := bignumBytes(tag.Value)
	if !ok || (len(b) != 4 && len(b) != 6 && len(b) != 16) {
		return nil, newValueError("invalid ipaddress value %v", tag.Value)
	}
	if len(b) == 6 {
		// MAC address: pass through unmodified, as no Go standard type
		// represents it.
		return &Tag{Number: uint64(TagIPAddress), Value: tag.Value}, nil
	}
	addr, ok := netip.AddrFromSlice(b)
	if !ok {
		return nil, newValueError("invalid ipaddress value %v", tag.Value)
	}
	return addr, nil
}

func handleIPNetwork(_ *Decoder, tag *Tag) (any, error) {
	m, ok := tag.Value.(*Map)
	if !ok || len(m.Order) != 1 {
		return nil, newValueError("invalid ipnetwork value %v", tag.Value)
	}
	key := m.Order[0]
	b, ok := bignumBytes(key)
	if !ok || (len(b) != 4 && len(b) != 16) {
		return nil, newValueError("invalid ipnetwork value %v", tag.Value)
	}
	prefixLen, ok := toInt(m.Entries[key])
	if !ok {
		return nil, newValueError("invalid ipnetwork value %v", tag.Value)
	}
	addr, ok := netip.AddrFromSlice(b)
	if !ok || prefixLen < 0 || prefixLen > addr.BitLen() {
		return nil, newValueError("invalid ipnetwork value %v", tag.Value)
	}
	prefix := netip.PrefixFrom(addr, prefixLen).Masked()
	return prefix, nil
}

func handleSelfDescribe(_ *Decoder, tag *Tag) (any, error) {
	return tag.Value, nil
}
