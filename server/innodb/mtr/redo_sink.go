package mtr

import (
	"bytes"
	"encoding/binary"

	"github.com/juju/errors"
	"github.com/pierrec/lz4/v4"
)

// FrameSink is a Sink that frames each redo record (kind length, kind,
// payload length, payload) and lz4-compresses the resulting batch before
// handing it to an underlying writer, mirroring the way the teacher's
// redo_log_manager.go serializes RedoLogEntry values before fsync.
//
// The underlying writer is external to the core (spec.md §1 places logging
// out of scope for the kernel); FrameSink only owns the framing/compression
// step, not durability.
type FrameSink struct {
	Write func(compressed []byte) error
}

func (f *FrameSink) WriteBatch(records []RedoRecord) error {
	var buf bytes.Buffer
	for _, r := range records {
		if err := writeFrame(&buf, r); err != nil {
			return errors.Annotate(err, "mtr: framing redo record")
		}
	}

	compressed := make([]byte, lz4.CompressBlockBound(buf.Len()))
	var c lz4.Compressor
	n, err := c.CompressBlock(buf.Bytes(), compressed)
	if err != nil {
		return errors.Annotate(err, "mtr: lz4 compressing redo batch")
	}
	if n == 0 {
		// Incompressible input: lz4 declines, fall back to the raw frame.
		compressed = buf.Bytes()
	} else {
		compressed = compressed[:n]
	}

	if f.Write == nil {
		return nil
	}
	return f.Write(compressed)
}

func writeFrame(buf *bytes.Buffer, r RedoRecord) error {
	kindLen := uint16(len(r.Kind))
	if err := binary.Write(buf, binary.BigEndian, kindLen); err != nil {
		return err
	}
	buf.WriteString(r.Kind)
	payloadLen := uint32(len(r.Payload))
	if err := binary.Write(buf, binary.BigEndian, payloadLen); err != nil {
		return err
	}
	buf.Write(r.Payload)
	return nil
}
