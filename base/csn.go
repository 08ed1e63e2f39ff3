// Copyright 2017 Keydap. All rights reserved.
// Licensed under the Apache License, Version 2.0, see LICENSE.

package base

// Csn is a change sequence number: a totally-ordered, replica-unique stamp
// attached to every resource mutation, rendered into meta.version on the
// wire.
type Csn interface {
	TimeMillis() int64

	ChangeCount() uint32

	ReplicaId() uint16

	ModificationCount() uint32

	String() string
}
