package dstore

import (
	"bytes"
	"testing"
	"time"

	"github.com/ValentinKolb/dcov/lib/db"
	"github.com/ValentinKolb/dcov/lib/db/engines/maple"
	dbtesting "github.com/ValentinKolb/dcov/lib/db/testing"
	"github.com/ValentinKolb/dcov/lib/store"
	"github.com/ValentinKolb/dcov/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

func newTestStateMachine(clock *dbtesting.ManualClock) *KVStateMachine {
	factory := CreateStateMaschineFactory(func() db.KVDB {
		return maple.NewMapleDB(&maple.DBOptions{Clock: clock.Now})
	})
	return factory(1, 1).(*KVStateMachine)
}

func update(t *testing.T, fsm *KVStateMachine, cmds ...internal.Command) []sm.Result {
	t.Helper()
	entries := make([]sm.Entry, len(cmds))
	for i := range cmds {
		entries[i] = sm.Entry{Index: uint64(i + 1), Cmd: cmds[i].Serialize()}
	}
	applied, err := fsm.Update(entries)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	results := make([]sm.Result, len(applied))
	for i, e := range applied {
		results[i] = e.Result
	}
	return results
}

func TestUpdateConditionalCommands(t *testing.T) {
	clock := dbtesting.NewManualClock(time.Unix(1_700_000_000, 0))
	fsm := newTestStateMachine(clock)
	defer fsm.Close()

	now := clock.Unix()
	results := update(t, fsm,
		internal.Command{Type: internal.CommandTSetIfUnset, Key: "k", Value: []byte("a"), Now: now},
		internal.Command{Type: internal.CommandTSetIfUnset, Key: "k", Value: []byte("b"), Now: now},
		internal.Command{Type: internal.CommandTCompareAndSwap, Key: "k", Old: []byte("x"), Value: []byte("c"), Now: now},
		internal.Command{Type: internal.CommandTCompareAndSwap, Key: "k", Old: []byte("a"), Value: []byte("c"), Now: now, ExpireIn: 60},
		internal.Command{Type: internal.CommandTSet, Key: "other", Value: []byte("v")},
	)

	wantApplied := []bool{true, false, false, true, true}
	for i, res := range results {
		if res.Value != uint64(store.RetCSuccess) {
			t.Fatalf("command %d failed: %s", i, res.Data)
		}
		if got := bytes.Equal(res.Data, resultApplied); got != wantApplied[i] {
			t.Errorf("command %d: expected applied=%v, got %v", i, wantApplied[i], got)
		}
	}

	res, err := fsm.Lookup(internal.Query{Type: internal.QueryTGet, Key: "k"})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if qr := res.(internal.QueryResult); !qr.Ok || string(qr.Value) != "c" {
		t.Errorf("Expected value c, got %+v", qr)
	}

	ttl, _ := fsm.Lookup(internal.Query{Type: internal.QueryTTTL, Key: "k"})
	if ttl.(int64) != 60 {
		t.Errorf("Expected TTL 60 from the proposal time, got %v", ttl)
	}

	keys, _ := fsm.Lookup(internal.Query{Type: internal.QueryTKeys, Key: ""})
	if got := keys.([]string); len(got) != 2 || got[0] != "k" || got[1] != "other" {
		t.Errorf("Expected keys [k other], got %v", got)
	}
}

func TestUpdateInvalidCommands(t *testing.T) {
	clock := dbtesting.NewManualClock(time.Unix(1_700_000_000, 0))
	fsm := newTestStateMachine(clock)
	defer fsm.Close()

	entries := []sm.Entry{
		{Index: 1, Cmd: nil},
		{Index: 2, Cmd: []byte{1, 2, 3}},
		{Index: 3, Cmd: (&internal.Command{Type: internal.CommandType(99), Key: "k"}).Serialize()},
	}
	applied, _ := fsm.Update(entries)

	want := []store.RetCode{store.RetCInvalidOperation, store.RetCInternalError, store.RetCInvalidOperation}
	for i, e := range applied {
		if e.Result.Value != uint64(want[i]) {
			t.Errorf("entry %d: expected code %s, got %s", i, want[i], store.RetCode(e.Result.Value))
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	clock := dbtesting.NewManualClock(time.Unix(1_700_000_000, 0))
	fsm := newTestStateMachine(clock)
	defer fsm.Close()

	update(t, fsm, internal.Command{Type: internal.CommandTSetE, Key: "k", Value: []byte("v"), Now: clock.Unix(), ExpireIn: 30})

	var buf bytes.Buffer
	if err := fsm.SaveSnapshot(nil, &buf, nil, nil); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	replica := newTestStateMachine(clock)
	defer replica.Close()
	if err := replica.RecoverFromSnapshot(&buf, nil, nil); err != nil {
		t.Fatalf("RecoverFromSnapshot failed: %v", err)
	}

	ttl, _ := replica.Lookup(internal.Query{Type: internal.QueryTTTL, Key: "k"})
	if ttl.(int64) != 30 {
		t.Errorf("Expected TTL 30 after recovery, got %v", ttl)
	}
}
