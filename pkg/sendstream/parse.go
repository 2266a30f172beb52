package sendstream

import (
	"encoding/binary"
	"hash/crc32"
)

// ParseHeader reads and validates the 13-byte magic plus 4-byte version
// prefix, returning the remaining bytes (the command sequence).
func ParseHeader(data []byte) (version Version, rest []byte, err error) {
	if len(data) < magicLen+4 {
		return 0, nil, &IncompleteError{}
	}
	if string(data[:magicLen]) != Magic {
		return 0, nil, &ParseError{Offset: 0, Reason: "bad magic header"}
	}
	v := Version(binary.LittleEndian.Uint32(data[magicLen : magicLen+4]))
	if v != Version1 && v != Version2 {
		return 0, nil, &ParseError{Offset: magicLen, Reason: "unsupported stream version"}
	}
	return v, data[magicLen+4:], nil
}

// ParseAll parses a complete sendstream, returning every command in order
// ending with End. Path, name, and data attributes borrow directly from
// data: the returned commands are only valid as long as data is not
// mutated or released.
func ParseAll(data []byte) (Version, []Command, error) {
	version, rest, err := ParseHeader(data)
	if err != nil {
		return 0, nil, err
	}

	var commands []Command
	offset := len(data) - len(rest)
	for {
		cmd, consumed, err := parseCommand(rest, offset)
		if err != nil {
			return 0, nil, err
		}
		commands = append(commands, cmd)
		rest = rest[consumed:]
		offset += consumed

		if cmd.Type == CmdEnd {
			break
		}
	}

	if len(rest) > 0 {
		return 0, nil, &TrailingDataError{Remaining: append([]byte(nil), rest...)}
	}
	return version, commands, nil
}

func parseCommand(buf []byte, offset int) (Command, int, error) {
	if len(buf) < cmdHeaderLen {
		return Command{}, 0, &IncompleteError{}
	}
	payloadLen := binary.LittleEndian.Uint32(buf[0:4])
	cmdType := CommandType(binary.LittleEndian.Uint16(buf[4:6]))
	wantCRC := binary.LittleEndian.Uint32(buf[6:10])

	total := cmdHeaderLen + int(payloadLen)
	if len(buf) < total {
		return Command{}, 0, &IncompleteError{}
	}
	commandBytes := buf[:total]

	if cmdType == CmdUnspecified {
		return Command{}, 0, &ParseError{Offset: offset, Reason: "unspecified command type"}
	}

	if gotCRC := crc32cOfCommand(commandBytes); gotCRC != wantCRC {
		return Command{}, 0, &ParseError{Offset: offset, Reason: "crc32c mismatch"}
	}

	payload := commandBytes[cmdHeaderLen:]
	attrs, err := parseAttrs(payload, offset+cmdHeaderLen)
	if err != nil {
		return Command{}, 0, err
	}

	return Command{Type: cmdType, Attrs: attrs}, total, nil
}

func parseAttrs(payload []byte, offset int) ([]Attr, error) {
	var attrs []Attr
	for len(payload) > 0 {
		if len(payload) < attrHeaderLen {
			return nil, &IncompleteError{}
		}
		attrType := AttrType(binary.LittleEndian.Uint16(payload[0:2]))
		attrLen := binary.LittleEndian.Uint16(payload[2:4])
		if len(payload) < attrHeaderLen+int(attrLen) {
			return nil, &IncompleteError{}
		}
		if attrType == AttrUnspecified {
			return nil, &ParseError{Offset: offset, Reason: "unspecified attribute type"}
		}
		value := payload[attrHeaderLen : attrHeaderLen+int(attrLen)]
		attrs = append(attrs, Attr{Type: attrType, Bytes: value})

		consumed := attrHeaderLen + int(attrLen)
		payload = payload[consumed:]
		offset += consumed
	}
	return attrs, nil
}

// crc32cOfCommand computes the command's CRC32C with the on-wire CRC field
// (bytes 6:10 of the header) treated as zero, without mutating commandBytes.
func crc32cOfCommand(commandBytes []byte) uint32 {
	crc := crc32.Update(0, crc32cTable, commandBytes[0:6])
	var zero [4]byte
	crc = crc32.Update(crc, crc32cTable, zero[:])
	crc = crc32.Update(crc, crc32cTable, commandBytes[10:])
	return crc
}
