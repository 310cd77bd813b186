// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package recorder persists the dispatched action stream into an
// append-only log and verifies replays against it. Records use the
// (key_len u32 LE, value_len u32 LE, key, value) framing and are indexed in
// memory in insertion order.
package recorder

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/database"

	"github.com/openmina/openmina-go/store"
)

var (
	ErrCorruptRecord  = errors.New("corrupt recorder record")
	ErrReplayDiverged = errors.New("replay diverged from recording")
)

// Entry is one recorded action.
type Entry struct {
	Seq     uint64
	Kind    store.Kind
	Time    store.Timestamp
	Payload []byte
}

// EncodeRecord frames (key, value) with little-endian length prefixes.
func EncodeRecord(key, value []byte) []byte {
	out := make([]byte, 8+len(key)+len(value))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(key)))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(value)))
	copy(out[8:], key)
	copy(out[8+len(key):], value)
	return out
}

// DecodeRecord reverses EncodeRecord, returning the remainder of the
// buffer after the record.
func DecodeRecord(b []byte) (key, value, rest []byte, err error) {
	if len(b) < 8 {
		return nil, nil, nil, ErrCorruptRecord
	}
	keyLen := binary.LittleEndian.Uint32(b[0:4])
	valLen := binary.LittleEndian.Uint32(b[4:8])
	total := 8 + int(keyLen) + int(valLen)
	if len(b) < total {
		return nil, nil, nil, ErrCorruptRecord
	}
	key = b[8 : 8+keyLen]
	value = b[8+keyLen : total]
	return key, value, b[total:], nil
}

// Recorder is the append-only action log. It implements store.Recorder.
type Recorder struct {
	db  database.Database
	seq uint64

	// in-memory insertion-order index
	entries []Entry
}

// New opens a recorder over [db], resuming after any existing entries.
func New(db database.Database) (*Recorder, error) {
	r := &Recorder{db: db}
	it := db.NewIterator()
	defer it.Release()
	for it.Next() {
		entry, err := decodeEntry(it.Key(), it.Value())
		if err != nil {
			return nil, err
		}
		r.entries = append(r.entries, entry)
		if entry.Seq >= r.seq {
			r.seq = entry.Seq + 1
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return r, nil
}

// RecordAction appends one dispatched action. Only top-level dispatches are
// persisted; nested follow-ups are reproduced by the effects on replay.
func (r *Recorder) RecordAction(a store.WithMeta) {
	if a.Meta.Depth != 0 {
		return
	}
	payload, err := json.Marshal(a.Action)
	if err != nil {
		payload = []byte(fmt.Sprintf("%q", err.Error()))
	}

	var timeBuf [8]byte
	binary.LittleEndian.PutUint64(timeBuf[:], uint64(a.Meta.Time))
	value := append(timeBuf[:], payload...)
	record := EncodeRecord([]byte(a.Action.ActionKind()), value)

	var seqKey [8]byte
	binary.BigEndian.PutUint64(seqKey[:], r.seq)
	_ = r.db.Put(seqKey[:], record)

	r.entries = append(r.entries, Entry{
		Seq:     r.seq,
		Kind:    a.Action.ActionKind(),
		Time:    a.Meta.Time,
		Payload: payload,
	})
	r.seq++
}

// Entries returns the insertion-order index.
func (r *Recorder) Entries() []Entry {
	return r.entries
}

func decodeEntry(seqKey, record []byte) (Entry, error) {
	if len(seqKey) != 8 {
		return Entry{}, ErrCorruptRecord
	}
	key, value, _, err := DecodeRecord(record)
	if err != nil {
		return Entry{}, err
	}
	if len(value) < 8 {
		return Entry{}, ErrCorruptRecord
	}
	return Entry{
		Seq:     binary.BigEndian.Uint64(seqKey),
		Kind:    store.Kind(key),
		Time:    store.Timestamp(binary.LittleEndian.Uint64(value[:8])),
		Payload: value[8:],
	}, nil
}

// VerifyReplay asserts that a replayed action stream matches the recorded
// one entry by entry: same kinds, same timestamps, same payloads.
func VerifyReplay(recorded, replayed []Entry) error {
	if len(recorded) != len(replayed) {
		return fmt.Errorf("%w: %d recorded vs %d replayed actions",
			ErrReplayDiverged, len(recorded), len(replayed))
	}
	for i := range recorded {
		r, p := recorded[i], replayed[i]
		if r.Kind != p.Kind {
			return fmt.Errorf("%w: action %d kind %q != %q", ErrReplayDiverged, i, r.Kind, p.Kind)
		}
		if r.Time != p.Time {
			return fmt.Errorf("%w: action %d time %d != %d", ErrReplayDiverged, i, r.Time, p.Time)
		}
		if string(r.Payload) != string(p.Payload) {
			return fmt.Errorf("%w: action %d payload mismatch", ErrReplayDiverged, i)
		}
	}
	return nil
}
