package ldapbackend

import (
	"errors"
	"testing"

	ldap "github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"

	"github.com/scimdrift/scimd/base"
)

func TestIsNetworkErr(t *testing.T) {
	assert.True(t, isNetworkErr(&ldap.Error{ResultCode: ldap.ErrorNetwork, Err: errors.New("dial failed")}))
	assert.True(t, isNetworkErr(&ldap.Error{ResultCode: ldap.LDAPResultBusy}))
	assert.True(t, isNetworkErr(&ldap.Error{ResultCode: ldap.LDAPResultUnavailable}))

	assert.False(t, isNetworkErr(&ldap.Error{ResultCode: ldap.LDAPResultEntryAlreadyExists}))
	assert.False(t, isNetworkErr(errors.New("not an ldap error at all")))
	assert.False(t, isNetworkErr(nil))
}

// TestIsAlreadyExistsErr is the regression test for the bug where a
// duplicate-create LDAPResultEntryAlreadyExists fell through every
// classification and bubbled up as a raw *ldap.Error instead of a 409.
func TestIsAlreadyExistsErr(t *testing.T) {
	assert.True(t, isAlreadyExistsErr(&ldap.Error{ResultCode: ldap.LDAPResultEntryAlreadyExists}))
	assert.True(t, isAlreadyExistsErr(&ldap.Error{ResultCode: ldap.LDAPResultConstraintViolation}))

	assert.False(t, isAlreadyExistsErr(&ldap.Error{ResultCode: ldap.ErrorNetwork}))
	assert.False(t, isAlreadyExistsErr(errors.New("plain error")))
}

func TestSplitParent(t *testing.T) {
	parent, sub := splitParent("emails.value")
	assert.Equal(t, "emails", parent)
	assert.Equal(t, "value", sub)

	parent, sub = splitParent("username")
	assert.Equal(t, "username", parent)
	assert.Equal(t, "", sub)
}

// ensures the base.Backend error constructors PostResource/PutResource
// depend on still carry the status codes the resource server expects.
func TestConflictAndPreconditionErrorCodes(t *testing.T) {
	assert.Equal(t, 409, base.NewConflictError("dup").Code())
	assert.Equal(t, 412, base.NewPreCondError("stale").Code())
}
