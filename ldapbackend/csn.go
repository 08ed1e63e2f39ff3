package ldapbackend

import (
	"fmt"
	"sync"
	"time"

	"github.com/scimdrift/scimd/base"
)

const gtimeFormat = "20060102150405.000000Z"

// csnGenerator stamps every mutation this backend performs with a
// monotonic, replica-unique change sequence number rendered into
// meta.version.
type csnGenerator struct {
	mutex       sync.Mutex
	lastTime    int64
	changeCount uint32
	replicaId   uint16
	modCount    uint32
}

type csnImpl struct {
	timeMillis  int64
	now         time.Time
	changeCount uint32
	replicaId   uint16
	modCount    uint32
}

func (ci csnImpl) TimeMillis() int64        { return ci.timeMillis }
func (ci csnImpl) ChangeCount() uint32      { return ci.changeCount }
func (ci csnImpl) ReplicaId() uint16        { return ci.replicaId }
func (ci csnImpl) ModificationCount() uint32 { return ci.modCount }

func (ci csnImpl) String() string {
	t := ci.now.Format(gtimeFormat)
	return fmt.Sprintf("%s#%06x#%03x#%06x", t, ci.changeCount, ci.replicaId, ci.modCount)
}

// newCsnGenerator builds a generator for one replica. replicaId should be
// stable across restarts of the same server instance (e.g. derived from
// the configured LDAP base DN or a server identity file) so that CSNs
// issued by this process never collide with another replica's.
func newCsnGenerator(replicaId uint16) *csnGenerator {
	return &csnGenerator{replicaId: replicaId}
}

func (cg *csnGenerator) NewCsn() base.Csn {
	cg.mutex.Lock()
	defer cg.mutex.Unlock()

	now := time.Now().UTC()
	millis := now.UnixNano() / int64(time.Millisecond)

	if cg.lastTime == millis {
		cg.changeCount++
	} else {
		cg.lastTime = millis
		cg.changeCount = 0
	}

	return csnImpl{
		timeMillis:  cg.lastTime,
		now:         now,
		changeCount: cg.changeCount,
		replicaId:   cg.replicaId,
		modCount:    cg.modCount,
	}
}
