package store

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// RaftNodeConfig describes a single Raft participant backing a RaftStore.
type RaftNodeConfig struct {
	NodeID    string
	Addr      string
	DataDir   string
	Bootstrap bool
	Logger    hclog.Logger
}

// RaftNode owns a Raft instance and the resources it was built from.
type RaftNode struct {
	Store *RaftStore

	raft      *raft.Raft
	logStore  *raftboltdb.BoltStore
	transport *raft.NetworkTransport
}

// NewRaftNode builds a Raft node whose log and stable state live in a bolt
// file under cfg.DataDir. With Bootstrap set, a fresh node forms a
// single-server cluster.
func NewRaftNode(cfg RaftNodeConfig) (*RaftNode, error) {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create raft dir: %w", err)
	}

	rc := raft.DefaultConfig()
	rc.LocalID = raft.ServerID(cfg.NodeID)
	rc.Logger = cfg.Logger.Named("raft")

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open raft log: %w", err)
	}

	snaps, err := raft.NewFileSnapshotStoreWithLogger(cfg.DataDir, 2, rc.Logger)
	if err != nil {
		logStore.Close()
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	advertise, err := net.ResolveTCPAddr("tcp", cfg.Addr)
	if err != nil {
		logStore.Close()
		return nil, fmt.Errorf("invalid raft address %s: %w", cfg.Addr, err)
	}
	transport, err := raft.NewTCPTransportWithLogger(cfg.Addr, advertise, 3, 10*time.Second, rc.Logger)
	if err != nil {
		logStore.Close()
		return nil, fmt.Errorf("failed to start raft transport: %w", err)
	}

	fsm := NewRaftStore(NewMemStore())
	r, err := raft.NewRaft(rc, fsm, logStore, logStore, snaps, transport)
	if err != nil {
		transport.Close()
		logStore.Close()
		return nil, fmt.Errorf("failed to start raft: %w", err)
	}
	fsm.SetRaft(r)

	if cfg.Bootstrap {
		f := r.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{{ID: rc.LocalID, Address: transport.LocalAddr()}},
		})
		if err := f.Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
			r.Shutdown()
			transport.Close()
			logStore.Close()
			return nil, fmt.Errorf("failed to bootstrap raft: %w", err)
		}
	}

	return &RaftNode{
		Store:     fsm,
		raft:      r,
		logStore:  logStore,
		transport: transport,
	}, nil
}

// Raft returns the underlying Raft instance.
func (n *RaftNode) Raft() *raft.Raft {
	return n.raft
}

// Close shuts Raft down and releases its transport and log.
func (n *RaftNode) Close() error {
	err := n.raft.Shutdown().Error()
	return errors.Join(err, n.transport.Close(), n.logStore.Close())
}
