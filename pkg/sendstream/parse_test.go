package sendstream_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"

	"stratum/pkg/sendstream"
)

func buildStream(t *testing.T, version sendstream.Version, commands []sendstream.Command) []byte {
	t.Helper()
	data, err := sendstream.Serialize(version, commands)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	return data
}

// TestParseAll_SubvolMkfileWriteEnd mirrors the S5 scenario: Subvol,
// Mkfile, Write, End, parsed back into exactly those four commands in
// order with verifying CRCs.
func TestParseAll_SubvolMkfileWriteEnd(t *testing.T) {
	u := uuid.New()
	commands := []sendstream.Command{
		{Type: sendstream.CmdSubvol, Attrs: []sendstream.Attr{
			sendstream.PathAttr(sendstream.AttrPath, "r"),
			sendstream.UUIDAttr(sendstream.AttrUUID, u),
			sendstream.U64Attr(sendstream.AttrCtransid, 1),
		}},
		{Type: sendstream.CmdMkfile, Attrs: []sendstream.Attr{
			sendstream.PathAttr(sendstream.AttrPath, "tmp/o257"),
			sendstream.U64Attr(sendstream.AttrIno, 257),
		}},
		{Type: sendstream.CmdWrite, Attrs: []sendstream.Attr{
			sendstream.PathAttr(sendstream.AttrPath, "tmp/o257"),
			sendstream.U64Attr(sendstream.AttrFileOffset, 0),
			sendstream.DataAttr(sendstream.AttrData, []byte("hello")),
		}},
		{Type: sendstream.CmdEnd},
	}

	data := buildStream(t, sendstream.Version1, commands)

	version, parsed, err := sendstream.ParseAll(data)
	if err != nil {
		t.Fatalf("ParseAll() error = %v", err)
	}
	if version != sendstream.Version1 {
		t.Errorf("version = %d, want 1", version)
	}
	if len(parsed) != 4 {
		t.Fatalf("len(parsed) = %d, want 4", len(parsed))
	}
	wantTypes := []sendstream.CommandType{
		sendstream.CmdSubvol, sendstream.CmdMkfile, sendstream.CmdWrite, sendstream.CmdEnd,
	}
	for i, want := range wantTypes {
		if parsed[i].Type != want {
			t.Errorf("parsed[%d].Type = %v, want %v", i, parsed[i].Type, want)
		}
	}

	path, ok := parsed[2].Path()
	if !ok || path != "tmp/o257" {
		t.Errorf("Write path = %q, %v, want %q, true", path, ok, "tmp/o257")
	}
	data3, ok := parsed[2].Data()
	if !ok || string(data3) != "hello" {
		t.Errorf("Write data = %q, %v, want %q, true", data3, ok, "hello")
	}
}

func TestParseAll_RoundTrip(t *testing.T) {
	commands := []sendstream.Command{
		{Type: sendstream.CmdMkdir, Attrs: []sendstream.Attr{
			sendstream.PathAttr(sendstream.AttrPath, "tmp/o1"),
			sendstream.U64Attr(sendstream.AttrIno, 1),
		}},
		{Type: sendstream.CmdEnd},
	}
	data := buildStream(t, sendstream.Version1, commands)

	_, parsed, err := sendstream.ParseAll(data)
	if err != nil {
		t.Fatalf("ParseAll() error = %v", err)
	}
	reserialized, err := sendstream.Serialize(sendstream.Version1, parsed)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if !bytes.Equal(data, reserialized) {
		t.Errorf("serialize(parse(S)) != S byte-for-byte")
	}
}

func TestParseAll_CRCMismatch(t *testing.T) {
	data := buildStream(t, sendstream.Version1, []sendstream.Command{
		{Type: sendstream.CmdUnlink, Attrs: []sendstream.Attr{
			sendstream.PathAttr(sendstream.AttrPath, "x"),
		}},
		{Type: sendstream.CmdEnd},
	})
	// Flip a byte inside the first command's payload without touching its
	// header's length/type/crc fields, so the stored CRC no longer matches.
	const magicAndVersionLen = 13 + 4
	const cmdHeaderLen = 4 + 2 + 4
	data[magicAndVersionLen+cmdHeaderLen+2] ^= 0xFF

	_, _, err := sendstream.ParseAll(data)
	var parseErr *sendstream.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("ParseAll() error = %v, want *ParseError", err)
	}
}

func TestParseAll_Incomplete(t *testing.T) {
	data := buildStream(t, sendstream.Version1, []sendstream.Command{
		{Type: sendstream.CmdEnd},
	})
	truncated := data[:len(data)-1]

	_, _, err := sendstream.ParseAll(truncated)
	var incomplete *sendstream.IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("ParseAll() error = %v, want *IncompleteError", err)
	}
}

func TestParseAll_TrailingData(t *testing.T) {
	data := buildStream(t, sendstream.Version1, []sendstream.Command{
		{Type: sendstream.CmdEnd},
	})
	data = append(data, 0xAB)

	_, _, err := sendstream.ParseAll(data)
	var trailing *sendstream.TrailingDataError
	if !errors.As(err, &trailing) {
		t.Fatalf("ParseAll() error = %v, want *TrailingDataError", err)
	}
}

func TestParseAll_BadMagic(t *testing.T) {
	_, _, err := sendstream.ParseAll([]byte("not-a-sendstream-header-at-all!!"))
	var parseErr *sendstream.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("ParseAll() error = %v, want *ParseError", err)
	}
}

func TestSerializeCommand_RejectsUnspecifiedType(t *testing.T) {
	_, err := sendstream.SerializeCommand(sendstream.Command{Type: sendstream.CmdUnspecified})
	if err == nil {
		t.Fatal("SerializeCommand() error = nil, want error for unspecified command type")
	}
}
