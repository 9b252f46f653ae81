package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-ticktick-auth/core"
)

var (
	_ gocmd.Querier[GetStoredCredentialsMessage, core.StoredCredentials] = (*GetStoredCredentialsQuery)(nil)
	_ gocmd.Querier[HasCredentialsMessage, bool]                        = (*HasCredentialsQuery)(nil)
	_ gocmd.Querier[GetTokenStateMessage, core.TokenState]              = (*GetTokenStateQuery)(nil)
)
