// Package remote defines the contract with the remote file service. The
// resilience layer never interprets the wire protocol; it only drives these
// operations through the retry and timeout wrappers.
package remote

import (
	"context"
	"io"

	"github.com/vietddude/netcache/internal/core/domain"
	"github.com/vietddude/netcache/internal/credentials"
)

// Session is an established connection to one server. Implementations return
// raw transport errors or *domain.StatusError; classification happens in the
// retry layer.
type Session interface {
	// ListDirectory returns the authoritative listing for a directory.
	ListDirectory(ctx context.Context, dir string) ([]domain.RemoteEntry, error)

	// Fetch opens a payload stream for a remote file. Size is -1 when the
	// server does not report it.
	Fetch(ctx context.Context, remotePath string) (body io.ReadCloser, size int64, err error)

	Close() error
}

// Service connects to remote servers.
type Service interface {
	Connect(ctx context.Context, target string, creds credentials.Credentials) (Session, error)
}
