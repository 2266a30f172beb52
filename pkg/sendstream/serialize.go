package sendstream

import (
	"bytes"
	"encoding/binary"
)

// Serialize writes the magic header, version, and every command in order
// back to wire format, recomputing each command's CRC32C.
func Serialize(version Version, commands []Command) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	var versionBytes [4]byte
	binary.LittleEndian.PutUint32(versionBytes[:], uint32(version))
	buf.Write(versionBytes[:])

	for _, cmd := range commands {
		encoded, err := SerializeCommand(cmd)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	return buf.Bytes(), nil
}

// SerializeCommand encodes a single command (header, attributes, and a
// freshly computed CRC32C) to wire bytes.
func SerializeCommand(cmd Command) ([]byte, error) {
	if cmd.Type == CmdUnspecified {
		return nil, &ParseError{Reason: "refusing to serialize unspecified command type"}
	}

	var payload bytes.Buffer
	for _, a := range cmd.Attrs {
		if a.Type == AttrUnspecified {
			return nil, &ParseError{Reason: "refusing to serialize unspecified attribute type"}
		}
		var attrHeader [attrHeaderLen]byte
		binary.LittleEndian.PutUint16(attrHeader[0:2], uint16(a.Type))
		binary.LittleEndian.PutUint16(attrHeader[2:4], uint16(len(a.Bytes)))
		payload.Write(attrHeader[:])
		payload.Write(a.Bytes)
	}

	out := make([]byte, cmdHeaderLen+payload.Len())
	binary.LittleEndian.PutUint32(out[0:4], uint32(payload.Len()))
	binary.LittleEndian.PutUint16(out[4:6], uint16(cmd.Type))
	// out[6:10] (the crc field) stays zero while it is included in the sum.
	copy(out[cmdHeaderLen:], payload.Bytes())

	crc := crc32cOfCommand(out)
	binary.LittleEndian.PutUint32(out[6:10], crc)
	return out, nil
}
