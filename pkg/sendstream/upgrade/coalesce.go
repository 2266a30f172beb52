package upgrade

import (
	"github.com/klauspost/compress/zstd"

	"stratum/pkg/sendstream"
)

// Config tunes the write-coalescing upgrade.
type Config struct {
	// MaxBatchedExtentSize bounds how many unencoded bytes may accumulate
	// into a single EncodedWrite before the batch is flushed regardless of
	// contiguity.
	MaxBatchedExtentSize int
}

// DefaultMaxBatchedExtentSize matches the window log used for zstd
// compression (2^17 bytes), so a single batch never exceeds one
// compression window.
const DefaultMaxBatchedExtentSize = 1 << 17

// pendingWrite accumulates consecutive Write commands against the same
// path at adjacent offsets, to be flushed into one EncodedWrite.
type pendingWrite struct {
	path  string
	start uint64
	data  []byte
	dirty bool
}

// Upgrade rewrites a parsed v1 command sequence into v2: runs of
// consecutive Write commands at the same path and contiguous offsets are
// coalesced and compressed into a single EncodedWrite command carrying the
// four required v2 metadata attributes. Every other command passes
// through unchanged.
func Upgrade(commands []sendstream.Command, cfg Config) ([]sendstream.Command, error) {
	maxBatch := cfg.MaxBatchedExtentSize
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchedExtentSize
	}

	enc, err := zstd.NewWriter(nil, zstd.WithWindowSize(1<<17))
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	out := make([]sendstream.Command, 0, len(commands))
	var pending *pendingWrite

	flush := func() error {
		if pending == nil {
			return nil
		}
		cmd, err := flushPending(*pending, enc)
		if err != nil {
			return err
		}
		out = append(out, cmd)
		pending = nil
		return nil
	}

	for _, cmd := range commands {
		if cmd.Type != sendstream.CmdWrite {
			if err := flush(); err != nil {
				return nil, err
			}
			out = append(out, cmd)
			continue
		}

		path, _ := cmd.Path()
		offset, _ := cmd.FileOffset()
		data, _ := cmd.Data()

		if pending != nil {
			sameRun := pending.path == path && pending.start+uint64(len(pending.data)) == offset
			fits := len(pending.data)+len(data) <= maxBatch
			if !sameRun || !fits {
				if err := flush(); err != nil {
					return nil, err
				}
			}
		}
		if pending == nil {
			pending = &pendingWrite{path: path, start: offset}
		}
		pending.data = append(pending.data, data...)
		pending.dirty = true
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// flushPending reserializes a dirty batched write into one EncodedWrite
// command: non-data attributes first (with a refreshed AttrFileOffset
// equal to the batch's start offset), then the compressed data attribute
// and the four v2 metadata attributes, per the flush ordering.
func flushPending(p pendingWrite, enc *zstd.Encoder) (sendstream.Command, error) {
	compressed := enc.EncodeAll(p.data, nil)

	unencLen := uint64(len(p.data))
	cmd := sendstream.Command{
		Type: sendstream.CmdEncodedWrite,
		Attrs: []sendstream.Attr{
			sendstream.PathAttr(sendstream.AttrPath, p.path),
			sendstream.U64Attr(sendstream.AttrFileOffset, p.start),
			sendstream.DataAttr(sendstream.AttrData, compressed),
			// UnencodedFileLen is not independently tracked by this
			// coalescing pass (it would require knowing the destination
			// file's eventual total size); it is set equal to this
			// batch's own unencoded length, which is correct for a file
			// written by exactly one batch and an approximation otherwise.
			sendstream.U64Attr(sendstream.AttrUnencodedFileLen, unencLen),
			sendstream.U64Attr(sendstream.AttrUnencodedLen, unencLen),
			sendstream.U64Attr(sendstream.AttrUnencodedOffset, 0),
			sendstream.U32Attr(sendstream.AttrCompression, uint32(sendstream.CompressionZstd)),
		},
	}
	return cmd, nil
}
