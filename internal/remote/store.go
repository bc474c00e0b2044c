// Package remote implements kv.Store against a celld host over gRPC.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/heysubinoy/pyazcell/internal/api"
	"github.com/heysubinoy/pyazcell/pkg/kv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const defaultTimeout = 5 * time.Second

// Store is a kv.Store whose calls are forwarded to a remote store service.
// Every call is bounded by the configured timeout.
type Store struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Prober = (*Store)(nil)
)

// Dial creates a client for the store service at addr. The connection is
// established lazily on the first call. Extra options are applied after the
// default insecure transport credentials.
func Dial(addr string, timeout time.Duration, opts ...grpc.DialOption) (*Store, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	// passthrough resolver for direct address connection
	conn, err := grpc.NewClient("passthrough:///"+addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Store{conn: conn, timeout: timeout}, nil
}

// Available reports false once the client has been closed.
func (s *Store) Available() bool {
	return s != nil && s.conn.GetState() != connectivity.Shutdown
}

// Get fetches a value from the remote store.
func (s *Store) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, api.GetMethod, wrapperspb.String(key), out); err != nil {
		return "", false, fromStatus(err)
	}
	fields := out.GetFields()
	return fields["value"].GetStringValue(), fields["found"].GetBoolValue(), nil
}

// Set writes a value to the remote store.
func (s *Store) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"key":   structpb.NewStringValue(key),
		"value": structpb.NewStringValue(value),
	}}
	if err := s.conn.Invoke(ctx, api.SetMethod, in, new(emptypb.Empty)); err != nil {
		return fromStatus(err)
	}
	return nil
}

// Delete removes a key from the remote store.
func (s *Store) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.conn.Invoke(ctx, api.DeleteMethod, wrapperspb.String(key), new(emptypb.Empty)); err != nil {
		return fromStatus(err)
	}
	return nil
}

// Close tears down the connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// fromStatus maps service status codes back to kv errors.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", kv.ErrQuotaExceeded, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", kv.ErrNotLeader, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", kv.ErrUnavailable, st.Message())
	default:
		return err
	}
}
