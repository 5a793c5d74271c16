package handler

import (
	"testing"
	"time"

	invitationdomain "eastask-go/internal/domain/invitation"
	statedomain "eastask-go/internal/domain/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvitations() []invitationdomain.Invitation {
	expires := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)
	return []invitationdomain.Invitation{
		{ID: "inv-1", WorkspaceID: "ws-1", Email: "bob@acme.io", Token: "tok-bob", Status: invitationdomain.StatusPending, ExpiresAt: expires},
		{ID: "inv-2", WorkspaceID: "ws-1", Email: "carol@acme.io", Token: "tok-carol", Status: invitationdomain.StatusPending, ExpiresAt: expires},
	}
}

func TestInvitationTokenOnlyForAddressee(t *testing.T) {
	response := toInvitationResponses(sampleInvitations(), " Bob@Acme.io ")
	require.Len(t, response, 2)
	assert.Equal(t, "tok-bob", response[0].Token)
	assert.Empty(t, response[1].Token)

	anonymous := toInvitationResponses(sampleInvitations(), "")
	for _, entry := range anonymous {
		assert.Empty(t, entry.Token)
	}
}

func TestStateResponseCarriesInviteeToken(t *testing.T) {
	snapshot := &statedomain.Snapshot{PendingInvitations: sampleInvitations()}

	response := toStateResponse(snapshot, "carol@acme.io")
	require.Len(t, response.PendingInvitations, 2)
	assert.Empty(t, response.PendingInvitations[0].Token)
	assert.Equal(t, "tok-carol", response.PendingInvitations[1].Token)
	assert.NotNil(t, response.OnlineUsers)
	assert.Empty(t, response.UserWorkspaces)
}
