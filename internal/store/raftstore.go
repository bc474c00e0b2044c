package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/raft"
	"github.com/heysubinoy/pyazcell/pkg/kv"
)

const applyTimeout = 5 * time.Second

// GetRaft returns the underlying raft.Raft pointer (for API layer leader checks)
func (rs *RaftStore) GetRaft() *raft.Raft {
	return rs.raft
}

// RaftCommand represents a set/delete operation to be applied via Raft.
type RaftCommand struct {
	Op    string `json:"op"` // "set" or "delete"
	Key   string `json:"key"`
	Value string `json:"value,omitempty"` // only for set
}

// RaftStore wraps a MemStore and applies changes via Raft consensus.
// It doubles as the raft.FSM, so the same value is handed to raft.NewRaft.
type RaftStore struct {
	store *MemStore
	raft  *raft.Raft
}

var (
	_ kv.Store  = (*RaftStore)(nil)
	_ kv.Prober = (*RaftStore)(nil)
	_ raft.FSM  = (*RaftStore)(nil)
)

// NewRaftStore creates a RaftStore over store. The Raft instance is attached
// with SetRaft once it has been built with this store as its FSM.
func NewRaftStore(store *MemStore) *RaftStore {
	return &RaftStore{store: store}
}

// SetRaft attaches the Raft instance that replicates writes.
func (rs *RaftStore) SetRaft(r *raft.Raft) {
	rs.raft = r
}

// Apply applies a Raft log entry to the local store.
func (rs *RaftStore) Apply(log *raft.Log) interface{} {
	var cmd RaftCommand
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return err
	}
	switch cmd.Op {
	case "set":
		return rs.store.Set(cmd.Key, cmd.Value)
	case "delete":
		return rs.store.Delete(cmd.Key)
	}
	return fmt.Errorf("unknown raft command %q", cmd.Op)
}

// Snapshot captures the full key space as JSON.
func (rs *RaftStore) Snapshot() (raft.FSMSnapshot, error) {
	return &jsonSnapshot{data: rs.store.Snapshot()}, nil
}

// Restore replaces the local store with a snapshot written by Snapshot.
func (rs *RaftStore) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var data map[string]string
	if err := json.NewDecoder(rc).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	rs.store.Replace(data)
	return nil
}

type jsonSnapshot struct {
	data map[string]string
}

func (s *jsonSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s.data); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *jsonSnapshot) Release() {}

// Available reports whether this node can currently accept writes.
func (rs *RaftStore) Available() bool {
	return rs != nil && rs.raft != nil && rs.raft.State() == raft.Leader
}

// Set submits a set command to Raft.
func (rs *RaftStore) Set(key, value string) error {
	return rs.apply(RaftCommand{Op: "set", Key: key, Value: value})
}

// Delete submits a delete command to Raft.
func (rs *RaftStore) Delete(key string) error {
	return rs.apply(RaftCommand{Op: "delete", Key: key})
}

func (rs *RaftStore) apply(cmd RaftCommand) error {
	if rs.raft == nil {
		return kv.ErrUnavailable
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	f := rs.raft.Apply(data, applyTimeout)
	if err := f.Error(); err != nil {
		if errors.Is(err, raft.ErrNotLeader) || errors.Is(err, raft.ErrLeadershipLost) {
			return fmt.Errorf("%w: %v", kv.ErrNotLeader, err)
		}
		return err
	}
	// The FSM's own result, e.g. a quota rejection.
	if err, ok := f.Response().(error); ok {
		return err
	}
	return nil
}

// Get reads directly from the local store.
func (rs *RaftStore) Get(key string) (string, bool, error) {
	return rs.store.Get(key)
}
