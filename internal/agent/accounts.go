package agent

import (
	"context"

	"github.com/botfarm/gofarm/pkg/farmapi"
)

// RemoteAccounts resolves launch configurations from the controlplane API,
// which owns account storage and credential encryption.
type RemoteAccounts struct {
	client *farmapi.Client
}

func NewRemoteAccounts(serverURL string) *RemoteAccounts {
	return &RemoteAccounts{client: farmapi.New(serverURL)}
}

func (a *RemoteAccounts) Lookup(ctx context.Context, username string) (*AccountConfig, error) {
	lc, err := a.client.LaunchConfigFor(ctx, username)
	if err != nil || lc == nil {
		return nil, err
	}
	return &AccountConfig{
		Username: lc.Username,
		Password: lc.Password,
		Plugin:   lc.Plugin,
		Args:     lc.Args,
		RSN:      lc.RSN,
	}, nil
}

var _ AccountSource = (*RemoteAccounts)(nil)
