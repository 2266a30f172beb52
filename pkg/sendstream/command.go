package sendstream

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Attr is one typed, length-prefixed attribute inside a command's payload.
// Bytes is a sub-slice of the parsed input buffer where possible (path,
// name, and data attributes are never copied during Parse).
type Attr struct {
	Type  AttrType
	Bytes []byte
}

// PathAttr builds a path-valued attribute (used for AttrPath, AttrPathTo,
// AttrPathLink, AttrClonePath, AttrXattrName).
func PathAttr(t AttrType, p string) Attr {
	return Attr{Type: t, Bytes: []byte(p)}
}

// U64Attr builds an 8-byte little-endian integer attribute (offsets,
// sizes, mode, uid/gid, timestamps, ctransid).
func U64Attr(t AttrType, v uint64) Attr {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return Attr{Type: t, Bytes: b}
}

// U32Attr builds a 4-byte little-endian integer attribute (compression
// type, encryption type).
func U32Attr(t AttrType, v uint32) Attr {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return Attr{Type: t, Bytes: b}
}

// UUIDAttr builds a 16-byte UUID attribute.
func UUIDAttr(t AttrType, id uuid.UUID) Attr {
	b := make([]byte, 16)
	copy(b, id[:])
	return Attr{Type: t, Bytes: b}
}

// DataAttr builds a raw byte-blob attribute (file data, xattr value).
func DataAttr(t AttrType, data []byte) Attr {
	return Attr{Type: t, Bytes: data}
}

// AsString interprets Bytes as a UTF-8 path or name.
func (a Attr) AsString() string {
	return string(a.Bytes)
}

// AsUint64 interprets Bytes as an 8-byte little-endian integer. It panics
// if Bytes is shorter than 8 bytes; Parse does not check attribute lengths
// against their types.
func (a Attr) AsUint64() uint64 {
	return binary.LittleEndian.Uint64(a.Bytes)
}

// AsUint32 interprets Bytes as a 4-byte little-endian integer.
func (a Attr) AsUint32() uint32 {
	return binary.LittleEndian.Uint32(a.Bytes)
}

// AsUUID interprets Bytes as a 16-byte UUID.
func (a Attr) AsUUID() (uuid.UUID, error) {
	return uuid.FromBytes(a.Bytes)
}

// Command is one parsed sendstream command: a type tag and its ordered
// list of attributes.
type Command struct {
	Type  CommandType
	Attrs []Attr
}

// Attr returns the first attribute of the given type, if present.
func (c Command) Attr(t AttrType) (Attr, bool) {
	for _, a := range c.Attrs {
		if a.Type == t {
			return a, true
		}
	}
	return Attr{}, false
}

// Path returns the command's AttrPath value, if it carries one.
func (c Command) Path() (string, bool) {
	a, ok := c.Attr(AttrPath)
	if !ok {
		return "", false
	}
	return a.AsString(), true
}

// FileOffset returns the command's AttrFileOffset value, if it carries one.
func (c Command) FileOffset() (uint64, bool) {
	a, ok := c.Attr(AttrFileOffset)
	if !ok {
		return 0, false
	}
	return a.AsUint64(), true
}

// Data returns the command's AttrData value, if it carries one.
func (c Command) Data() ([]byte, bool) {
	a, ok := c.Attr(AttrData)
	if !ok {
		return nil, false
	}
	return a.Bytes, true
}

// WithAttrs returns a copy of c with attrs appended, leaving c's own
// attribute slice unchanged.
func (c Command) WithAttrs(attrs ...Attr) Command {
	out := Command{Type: c.Type, Attrs: append([]Attr(nil), c.Attrs...)}
	out.Attrs = append(out.Attrs, attrs...)
	return out
}
