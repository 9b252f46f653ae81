package query

import (
	"context"
	"time"

	"github.com/goliatone/go-ticktick-auth/core"
)

type CredentialReader interface {
	Load(ctx context.Context) (core.StoredCredentials, error)
	HasCredentials(ctx context.Context) (bool, error)
}

type GetStoredCredentialsQuery struct {
	reader CredentialReader
}

func NewGetStoredCredentialsQuery(reader CredentialReader) *GetStoredCredentialsQuery {
	return &GetStoredCredentialsQuery{reader: reader}
}

func (q *GetStoredCredentialsQuery) Query(ctx context.Context, _ GetStoredCredentialsMessage) (core.StoredCredentials, error) {
	if q == nil || q.reader == nil {
		return core.StoredCredentials{}, queryDependencyError("query: credential reader is required")
	}
	return q.reader.Load(ctx)
}

type HasCredentialsQuery struct {
	reader CredentialReader
}

func NewHasCredentialsQuery(reader CredentialReader) *HasCredentialsQuery {
	return &HasCredentialsQuery{reader: reader}
}

func (q *HasCredentialsQuery) Query(ctx context.Context, _ HasCredentialsMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, queryDependencyError("query: credential reader is required")
	}
	return q.reader.HasCredentials(ctx)
}

// GetTokenStateQuery evaluates freshness of the stored tokens without
// touching the network.
type GetTokenStateQuery struct {
	reader CredentialReader
	now    func() time.Time
}

func NewGetTokenStateQuery(reader CredentialReader) *GetTokenStateQuery {
	return &GetTokenStateQuery{
		reader: reader,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (q *GetTokenStateQuery) WithClock(now func() time.Time) *GetTokenStateQuery {
	if q != nil && now != nil {
		q.now = now
	}
	return q
}

func (q *GetTokenStateQuery) Query(ctx context.Context, msg GetTokenStateMessage) (core.TokenState, error) {
	if q == nil || q.reader == nil {
		return core.TokenState{}, queryDependencyError("query: credential reader is required")
	}
	stored, err := q.reader.Load(ctx)
	if err != nil {
		return core.TokenState{}, err
	}
	var record core.TokenRecord
	if stored.Tokens != nil {
		record = *stored.Tokens
	}
	return core.ResolveTokenState(q.now(), record, msg.ExpiringSoonWindow), nil
}
