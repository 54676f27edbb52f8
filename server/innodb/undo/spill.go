package undo

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
	"github.com/juju/errors"
)

// SpillLog persists popped-but-not-yet-applied undo records to an
// external writer, snappy-compressing each batch before handoff, so a
// crash between pop and apply can be replayed on restart without redoing
// the whole rollback from scratch. Mirrors the teacher's
// compression_manager.go, which already wires snappy for page bodies.
type SpillLog struct {
	Write func(compressed []byte) error
}

func (s *SpillLog) Persist(recs []*Rec) error {
	var buf bytes.Buffer
	for _, r := range recs {
		if err := encodeRec(&buf, r); err != nil {
			return errors.Annotate(err, "undo: encoding spill record")
		}
	}
	compressed := snappy.Encode(nil, buf.Bytes())
	if s.Write == nil {
		return nil
	}
	return s.Write(compressed)
}

func (s *SpillLog) Restore(compressed []byte) ([]*Rec, error) {
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.Annotate(err, "undo: decompressing spill batch")
	}
	r := bytes.NewReader(raw)
	var recs []*Rec
	for r.Len() > 0 {
		rec, err := decodeRec(r)
		if err != nil {
			return nil, errors.Annotate(err, "undo: decoding spill record")
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func encodeRec(buf *bytes.Buffer, r *Rec) error {
	if err := binary.Write(buf, binary.BigEndian, r.UndoNo); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, r.RollPtr.Pack()); err != nil {
		return err
	}
	if err := writeBytes(buf, r.Ref); err != nil {
		return err
	}
	if err := writeBytes(buf, r.Before); err != nil {
		return err
	}
	var hasPrev byte
	if r.PrevVersionRollPtr != nil {
		hasPrev = 1
	}
	buf.WriteByte(hasPrev)
	if hasPrev == 1 {
		if err := binary.Write(buf, binary.BigEndian, r.PrevVersionRollPtr.Pack()); err != nil {
			return err
		}
	}
	return nil
}

func writeBytes(buf *bytes.Buffer, b []byte) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func decodeRec(r *bytes.Reader) (*Rec, error) {
	var undoNo, rpPacked uint64
	if err := binary.Read(r, binary.BigEndian, &undoNo); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &rpPacked); err != nil {
		return nil, err
	}
	ref, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	before, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	hasPrev, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	rec := &Rec{UndoNo: undoNo, RollPtr: UnpackRollPtr(rpPacked), Ref: ref, Before: before}
	if hasPrev == 1 {
		var prevPacked uint64
		if err := binary.Read(r, binary.BigEndian, &prevPacked); err != nil {
			return nil, err
		}
		prev := UnpackRollPtr(prevPacked)
		rec.PrevVersionRollPtr = &prev
	}
	return rec, nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
