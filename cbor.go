// Package cbor provides CBOR (Concise Binary Object Representation) decoding
// as defined in RFC 8949. This implementation is inspired by .NET's System.Formats.Cbor.
package cbor

// MajorType represents the CBOR major type (3-bit value in the initial byte).
type MajorType byte

const (
	// MajorTypeUnsignedInteger represents unsigned integer (major type 0).
	MajorTypeUnsignedInteger MajorType = 0
	// MajorTypeNegativeInteger represents negative integer (major type 1).
	MajorTypeNegativeInteger MajorType = 1
	// MajorTypeByteString represents byte string (major type 2).
	MajorTypeByteString MajorType = 2
	// MajorTypeTextString represents UTF-8 text string (major type 3).
	MajorTypeTextString MajorType = 3
	// MajorTypeArray represents array of data items (major type 4).
	MajorTypeArray MajorType = 4
	// MajorTypeMap represents map of pairs of data items (major type 5).
	MajorTypeMap MajorType = 5
	// MajorTypeTag represents tagged data item (major type 6).
	MajorTypeTag MajorType = 6
	// MajorTypeSimpleOrFloat represents simple values and floats (major type 7).
	MajorTypeSimpleOrFloat MajorType = 7
)

// String returns the string representation of the major type.
func (mt MajorType) String() string {
	switch mt {
	case MajorTypeUnsignedInteger:
		return "UnsignedInteger"
	case MajorTypeNegativeInteger:
		return "NegativeInteger"
	case MajorTypeByteString:
		return "ByteString"
	case MajorTypeTextString:
		return "TextString"
	case MajorTypeArray:
		return "Array"
	case MajorTypeMap:
		return "Map"
	case MajorTypeTag:
		return "Tag"
	case MajorTypeSimpleOrFloat:
		return "SimpleOrFloat"
	default:
		return "Unknown"
	}
}

// AdditionalInfo represents the additional information in the initial byte.
type AdditionalInfo byte

const (
	// AdditionalInfoDirect means the value is encoded directly in the additional info (0-23).
	AdditionalInfoDirect AdditionalInfo = 0
	// AdditionalInfo8Bit means the following byte contains the value.
	AdditionalInfo8Bit AdditionalInfo = 24
	// AdditionalInfo16Bit means the following 2 bytes contain the value.
	AdditionalInfo16Bit AdditionalInfo = 25
	// AdditionalInfo32Bit means the following 4 bytes contain the value.
	AdditionalInfo32Bit AdditionalInfo = 26
	// AdditionalInfo64Bit means the following 8 bytes contain the value.
	AdditionalInfo64Bit AdditionalInfo = 27
	// AdditionalInfoIndefiniteLength means indefinite length (used for strings, arrays, maps).
	AdditionalInfoIndefiniteLength AdditionalInfo = 31
)

// SimpleValue represents CBOR simple values.
type SimpleValue byte

const (
	// SimpleValueFalse represents the boolean value false.
	SimpleValueFalse SimpleValue = 20
	// SimpleValueTrue represents the boolean value true.
	SimpleValueTrue SimpleValue = 21
	// SimpleValueNull represents a null value.
	SimpleValueNull SimpleValue = 22
	// SimpleValueUndefined represents an undefined value.
	SimpleValueUndefined SimpleValue = 23
)

// CborTag represents well-known CBOR semantic tags.
type CborTag uint64

const (
	// TagDateTimeString is a standard date/time string (RFC 3339).
	TagDateTimeString CborTag = 0
	// TagUnixTime is an epoch-based date/time.
	TagUnixTime CborTag = 1
	// TagUnsignedBignum is a positive bignum.
	TagUnsignedBignum CborTag = 2
	// TagNegativeBignum is a negative bignum.
	TagNegativeBignum CborTag = 3
	// TagDecimalFraction is a decimal fraction.
	TagDecimalFraction CborTag = 4
	// TagBigFloat is a bigfloat.
	TagBigFloat CborTag = 5
	// TagSharedMarker reserves a slot in the shareables table for the tagged
	// value, allowing it to be referenced by TagSharedReference before it is
	// fully decoded (cyclic structures).
	TagSharedMarker CborTag = 28
	// TagSharedReference resolves to a previously reserved TagSharedMarker slot.
	TagSharedReference CborTag = 29
	// TagRational is a rational number expressed as [numerator, denominator].
	TagRational CborTag = 30
	// TagExpectedBase64URL is expected conversion to base64url encoding.
	TagExpectedBase64URL CborTag = 21
	// TagExpectedBase64 is expected conversion to base64 encoding.
	TagExpectedBase64 CborTag = 22
	// TagExpectedBase16 is expected conversion to base16 encoding.
	TagExpectedBase16 CborTag = 23
	// TagEncodedCborData is encoded CBOR data item.
	TagEncodedCborData CborTag = 24
	// TagURI is a URI (RFC 3986).
	TagURI CborTag = 32
	// TagBase64URL is a base64url encoded text.
	TagBase64URL CborTag = 33
	// TagBase64 is a base64 encoded text.
	TagBase64 CborTag = 34
	// TagRegularExpression is a regular expression (PCRE/ECMA262).
	TagRegularExpression CborTag = 35
	// TagMIMEMessage is a MIME message (RFC 2045).
	TagMIMEMessage CborTag = 36
	// TagUUID is a binary UUID (RFC 4122).
	TagUUID CborTag = 37
	// TagStringRef is a back-reference into the active stringref namespace.
	TagStringRef CborTag = 25
	// TagStringRefNamespace introduces a new stringref namespace for the
	// tagged value and its descendants.
	TagStringRefNamespace CborTag = 256
	// TagSet is a mathematical set, encoded as an array of its members.
	TagSet CborTag = 258
	// TagIPAddress is a 4- or 16-byte IPv4/IPv6 address (a 6-byte payload is
	// passed through unmodified as a MAC address).
	TagIPAddress CborTag = 260
	// TagIPNetwork is a single-entry map of {address: prefix length}.
	TagIPNetwork CborTag = 261
	// TagSelfDescribedCbor is a self-described CBOR.
	TagSelfDescribedCbor CborTag = 55799
)

// Break byte used to terminate indefinite-length items.
const breakByte byte = 0xFF
