package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddSecretApprovalDedupesPendingRequests(t *testing.T) {
	q := New()
	first, err := q.AddSecretApproval("ccos.network.http-fetch", "api-key", "needs an API key", 24)
	require.NoError(t, err)
	second, err := q.AddSecretApproval("ccos.network.http-fetch", "api-key", "needs an API key", 24)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, q.ListPendingSecrets(), 1)
}

func TestSetSecretCompletesPendingRequest(t *testing.T) {
	q := New()
	req, err := q.AddSecretApproval("ccos.network.http-fetch", "api-key", "needs an API key", 0)
	require.NoError(t, err)

	require.NoError(t, q.SetSecret(context.Background(), "ccos.network.http-fetch", "api-key", "sekret"))

	got, ok := q.Get(req.ID)
	require.True(t, ok)
	require.Equal(t, StatusComplete, got.Status)
	require.Empty(t, q.ListPendingSecrets())

	secret, ok := q.GetSecret("ccos.network.http-fetch", "api-key")
	require.True(t, ok)
	require.Equal(t, "sekret", secret.Value)
}

func TestRequestHumanActionAndComplete(t *testing.T) {
	q := New()
	ctx := context.Background()
	id, err := q.RequestHumanAction(ctx, "confirm destructive operation")
	require.NoError(t, err)

	require.NoError(t, q.Complete(ctx, id, map[string]any{"approved": true}))

	got, ok := q.Get(id)
	require.True(t, ok)
	require.Equal(t, StatusComplete, got.Status)
}

func TestCompleteUnknownRequestFails(t *testing.T) {
	q := New()
	err := q.Complete(context.Background(), "ghost", nil)
	require.Error(t, err)
}

func TestCompleteAlreadyCompletedRequestFails(t *testing.T) {
	q := New()
	ctx := context.Background()
	id, err := q.RequestHumanAction(ctx, "do the thing")
	require.NoError(t, err)
	require.NoError(t, q.Complete(ctx, id, nil))
	require.Error(t, q.Complete(ctx, id, nil))
}

func TestListPendingSecretsExpiresElapsedTTL(t *testing.T) {
	q := New()
	fixedNow := time.Now()
	q.nowFn = func() time.Time { return fixedNow }
	_, err := q.AddSecretApproval("ccos.echo", "token", "expires soon", 1)
	require.NoError(t, err)
	require.Len(t, q.ListPendingSecrets(), 1)

	q.nowFn = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	require.Empty(t, q.ListPendingSecrets())
}
