// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package recorder

import (
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/openmina/openmina-go/store"
)

type noteAction struct {
	Note string `json:"note"`
}

func (noteAction) ActionKind() store.Kind { return "Note" }

func TestRecordFramingRoundTrip(t *testing.T) {
	require := require.New(t)

	key := []byte("block/get")
	value := []byte{1, 2, 3, 4, 5}
	framed := EncodeRecord(key, value)
	framed = append(framed, EncodeRecord([]byte("k2"), nil)...)

	k, v, rest, err := DecodeRecord(framed)
	require.NoError(err)
	require.Equal(key, k)
	require.Equal(value, v)

	k, v, rest, err = DecodeRecord(rest)
	require.NoError(err)
	require.Equal([]byte("k2"), k)
	require.Empty(v)
	require.Empty(rest)

	_, _, _, err = DecodeRecord([]byte{1, 2})
	require.ErrorIs(err, ErrCorruptRecord)
}

func TestRecorderPersistsAndReloads(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	rec, err := New(db)
	require.NoError(err)

	rec.RecordAction(store.WithMeta{
		Action: noteAction{Note: "a"},
		Meta:   store.ActionMeta{Time: 100},
	})
	// nested dispatches are not persisted
	rec.RecordAction(store.WithMeta{
		Action: noteAction{Note: "nested"},
		Meta:   store.ActionMeta{Time: 100, Depth: 1},
	})
	rec.RecordAction(store.WithMeta{
		Action: noteAction{Note: "b"},
		Meta:   store.ActionMeta{Time: 200},
	})
	require.Len(rec.Entries(), 2)

	reloaded, err := New(db)
	require.NoError(err)
	require.Equal(rec.Entries(), reloaded.Entries())

	// appending continues the sequence
	reloaded.RecordAction(store.WithMeta{
		Action: noteAction{Note: "c"},
		Meta:   store.ActionMeta{Time: 300},
	})
	require.Equal(uint64(2), reloaded.Entries()[2].Seq)
}

func TestVerifyReplay(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	rec, err := New(db)
	require.NoError(err)
	for i, note := range []string{"a", "b", "c"} {
		rec.RecordAction(store.WithMeta{
			Action: noteAction{Note: note},
			Meta:   store.ActionMeta{Time: store.Timestamp(i)},
		})
	}

	replayDB := memdb.New()
	replay, err := New(replayDB)
	require.NoError(err)
	for i, note := range []string{"a", "b", "c"} {
		replay.RecordAction(store.WithMeta{
			Action: noteAction{Note: note},
			Meta:   store.ActionMeta{Time: store.Timestamp(i)},
		})
	}
	require.NoError(VerifyReplay(rec.Entries(), replay.Entries()))

	// divergence is reported
	replay.RecordAction(store.WithMeta{Action: noteAction{Note: "extra"}})
	require.ErrorIs(VerifyReplay(rec.Entries(), replay.Entries()), ErrReplayDiverged)
}
