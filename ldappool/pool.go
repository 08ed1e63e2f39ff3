// Package ldappool implements a bounded pool of bound LDAP connections,
// handed out for the duration of a single backend operation and always
// returned on every exit path (§4.8, §9).
package ldappool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ldap "github.com/go-ldap/ldap/v3"
	logger "github.com/juju/loggo"

	"github.com/scimdrift/scimd/conf"
)

var log = logger.GetLogger("scimd.ldappool")

// ErrClosed is returned by Acquire once the pool has been Closed.
var ErrClosed = errors.New("ldappool: pool closed")

// Pool hands out *ldap.Conn values already bound with the service
// account, recycling them across requests up to a configured size. The
// slot semaphore is a buffered channel rather than sync.Cond so that
// Acquire can select on ctx.Done() without leaking a waiter goroutine.
type Pool struct {
	cfg  conf.LdapConfig
	slot chan struct{}

	mu     sync.Mutex
	idle   []*ldap.Conn
	closed bool
}

// New creates a Pool against the given LDAP settings. No connections are
// dialed eagerly; each Acquire dials on demand up to cfg.PoolSize slots.
func New(cfg conf.LdapConfig) *Pool {
	p := &Pool{cfg: cfg, slot: make(chan struct{}, cfg.PoolSize)}
	for i := 0; i < cfg.PoolSize; i++ {
		p.slot <- struct{}{}
	}
	return p
}

func (p *Pool) dial() (*ldap.Conn, error) {
	conn, err := ldap.DialURL(p.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ldappool: dial %s: %w", p.cfg.URL, err)
	}
	if err := conn.Bind(p.cfg.BindDN, p.cfg.BindPassword); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ldappool: bind as %s: %w", p.cfg.BindDN, err)
	}
	return conn, nil
}

// Acquire blocks until a slot is free or ctx is done. The caller must
// call Release exactly once on the returned connection, on every code
// path (success, error, panic-recovery) that reached past Acquire.
func (p *Pool) Acquire(ctx context.Context) (*ldap.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.slot:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.slot <- struct{}{}
		return nil, ErrClosed
	}
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	conn, err := p.dial()
	if err != nil {
		p.slot <- struct{}{}
		return nil, err
	}
	return conn, nil
}

// Release returns a connection to the pool. If healthy is false the
// connection is closed and discarded instead of recycled, e.g. after a
// network error observed by the caller.
func (p *Pool) Release(conn *ldap.Conn, healthy bool) {
	p.mu.Lock()
	closed := p.closed
	if !closed && healthy {
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
	} else {
		p.mu.Unlock()
		conn.Close()
	}
	p.slot <- struct{}{}
}

// Close discards every idle connection and marks the pool unusable.
// Connections currently checked out are closed by their own Release call.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, c := range p.idle {
		c.Close()
	}
	p.idle = nil
	log.Infof("ldappool: closed")
}
