package query

import (
	"fmt"
	"time"
)

const (
	TypeGetStoredCredentials = "ticktick.query.credentials.get"
	TypeHasCredentials       = "ticktick.query.credentials.has"
	TypeGetTokenState        = "ticktick.query.token_state.get"
)

type GetStoredCredentialsMessage struct{}

func (GetStoredCredentialsMessage) Type() string { return TypeGetStoredCredentials }

func (GetStoredCredentialsMessage) Validate() error { return nil }

type HasCredentialsMessage struct{}

func (HasCredentialsMessage) Type() string { return TypeHasCredentials }

func (HasCredentialsMessage) Validate() error { return nil }

type GetTokenStateMessage struct {
	ExpiringSoonWindow time.Duration
}

func (GetTokenStateMessage) Type() string { return TypeGetTokenState }

func (m GetTokenStateMessage) Validate() error {
	if m.ExpiringSoonWindow < 0 {
		return fmt.Errorf("query: expiring-soon window must not be negative")
	}
	return nil
}
