package ldappool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scimdrift/scimd/conf"
)

func TestAcquireBlocksUntilSlotOrContextDone(t *testing.T) {
	p := New(conf.LdapConfig{PoolSize: 0})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a pool with no slots must block until ctx is done, never dial")
}

func TestAcquireAfterCloseReturnsErrClosed(t *testing.T) {
	p := New(conf.LdapConfig{PoolSize: 1})
	p.Close()

	_, err := p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAcquireAfterCloseReleasesSlotBackForNextCaller(t *testing.T) {
	p := New(conf.LdapConfig{PoolSize: 1})
	p.Close()

	// the first Acquire after Close must not leak the slot it consumed,
	// otherwise every later Acquire call blocks forever even though the
	// pool itself is correctly reporting ErrClosed.
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := p.Acquire(ctx)
		cancel()
		assert.ErrorIs(t, err, ErrClosed)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := New(conf.LdapConfig{PoolSize: 2})
	assert.NotPanics(t, func() {
		p.Close()
		p.Close()
	})
}
