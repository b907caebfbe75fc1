package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectoryLookupConsumer(t *testing.T) {
	t.Parallel()

	d := NewMemoryDirectory()
	d.PutConsumer(&Consumer{Key: "ck1", Secret: "cs1"})

	c, err := d.LookupConsumer(context.Background(), "ck1")
	require.NoError(t, err)
	assert.Equal(t, "ck1", c.ID) // ID defaults to the key
	assert.Equal(t, "cs1", c.Secret)

	_, err = d.LookupConsumer(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDirectoryResolveAccessToken(t *testing.T) {
	t.Parallel()

	d := NewMemoryDirectory()
	d.PutConsumer(&Consumer{ID: "c1", Key: "ck1", Secret: "cs1"})
	d.PutConsumer(&Consumer{ID: "c2", Key: "ck2", Secret: "cs2"})
	d.PutToken(&Token{Token: "tk1", Secret: "ts1", ConsumerID: "c1", UserID: "u1"})
	d.PutToken(&Token{Token: "tk2", Secret: "ts2", ConsumerID: "c1", Status: TokenStatusRevoked})

	ctx := context.Background()
	owner := &Consumer{ID: "c1"}

	tok, err := d.ResolveAccessToken(ctx, owner, "tk1")
	require.NoError(t, err)
	assert.Equal(t, "u1", tok.UserID)

	_, err = d.ResolveAccessToken(ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// Revoked tokens and tokens of other consumers resolve as not found.
	_, err = d.ResolveAccessToken(ctx, owner, "tk2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.ResolveAccessToken(ctx, &Consumer{ID: "c2"}, "tk1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDirectoryNonce(t *testing.T) {
	t.Parallel()

	t.Run("unique insert", func(t *testing.T) {
		t.Parallel()
		d := NewMemoryDirectory()
		ctx := context.Background()

		require.NoError(t, d.CheckAndRecordNonce(ctx, "c1", "t1", 1, "n1"))
		assert.ErrorIs(t, d.CheckAndRecordNonce(ctx, "c1", "t1", 1, "n1"), ErrNonceAlreadyUsed)
		require.NoError(t, d.CheckAndRecordNonce(ctx, "c1", "t2", 1, "n1"))
		require.NoError(t, d.CheckAndRecordNonce(ctx, "c2", "t1", 1, "n1"))
	})

	t.Run("concurrent presentations", func(t *testing.T) {
		t.Parallel()
		d := NewMemoryDirectory()

		const racers = 16
		errs := make([]error, racers)
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = d.CheckAndRecordNonce(context.Background(), "c1", "t1", 1, "n1")
			}()
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, ErrNonceAlreadyUsed)
			}
		}
		assert.Equal(t, 1, wins)
	})

	t.Run("expired records can be reused", func(t *testing.T) {
		t.Parallel()
		now := time.Unix(1_700_000_000, 0)
		d := NewMemoryDirectory(
			WithNonceTTL(time.Minute),
			WithClock(func() time.Time { return now }),
		)
		ctx := context.Background()

		require.NoError(t, d.CheckAndRecordNonce(ctx, "c1", "t1", 1, "n1"))
		assert.ErrorIs(t, d.CheckAndRecordNonce(ctx, "c1", "t1", 1, "n1"), ErrNonceAlreadyUsed)

		now = now.Add(2 * time.Minute)
		require.NoError(t, d.CheckAndRecordNonce(ctx, "c1", "t1", 1, "n1"))
	})
}

func TestMemoryDirectoryReplaceCredentials(t *testing.T) {
	t.Parallel()

	d := NewMemoryDirectory()
	d.PutConsumer(&Consumer{ID: "c1", Key: "old", Secret: "s"})
	require.NoError(t, d.CheckAndRecordNonce(context.Background(), "c1", "t1", 1, "n1"))

	d.ReplaceCredentials(
		[]Consumer{{ID: "c2", Key: "new", Secret: "s2"}},
		[]Token{{Token: "tk", Secret: "ts", ConsumerID: "c2"}},
	)

	_, err := d.LookupConsumer(context.Background(), "old")
	assert.ErrorIs(t, err, ErrNotFound)
	c, err := d.LookupConsumer(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, "c2", c.ID)

	// Nonce history survives the swap.
	assert.ErrorIs(t,
		d.CheckAndRecordNonce(context.Background(), "c1", "t1", 1, "n1"),
		ErrNonceAlreadyUsed)
}

func TestMemoryDirectoryPruneNonces(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	d := NewMemoryDirectory(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, d.CheckAndRecordNonce(ctx, "c1", "t1", 1, "n1"))
	require.NoError(t, d.CheckAndRecordNonce(ctx, "c1", "t1", 1, "n2"))
	assert.Equal(t, 2, d.NonceCount())

	pruned := d.PruneNonces(now.Add(time.Second))
	assert.Equal(t, 2, pruned)
	assert.Equal(t, 0, d.NonceCount())
}
