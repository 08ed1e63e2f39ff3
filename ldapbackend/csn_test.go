package ldapbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCsnGeneratorMonotonic(t *testing.T) {
	cg := newCsnGenerator(7)

	first := cg.NewCsn()
	second := cg.NewCsn()

	assert.Equal(t, uint16(7), first.ReplicaId())
	assert.Equal(t, uint16(7), second.ReplicaId())
	assert.NotEqual(t, first.String(), second.String(), "two CSNs minted back to back must render distinct strings")
}

func TestCsnStringFormat(t *testing.T) {
	cg := newCsnGenerator(1)
	csn := cg.NewCsn()
	// "<generalizedTime>#<changeCount>#<replicaId>#<modCount>"
	assert.Regexp(t, `^\d{14}\.\d{6}Z#[0-9a-f]{6}#[0-9a-f]{3}#[0-9a-f]{6}$`, csn.String())
}
