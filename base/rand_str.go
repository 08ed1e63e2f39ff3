// Copyright 2017 Keydap. All rights reserved.
// Licensed under the Apache License, Version 2.0, see LICENSE.

package base

import (
	"math/rand"
	"time"
)

// RandStr generates a short random key used to index the otherwise
// unordered SubAts map of a ComplexAttribute; it carries no semantic
// meaning of its own.
var strSeed = rand.NewSource(time.Now().UnixNano())

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ-0123456789"
const (
	letterIdxBits  = 6
	letterIdxMask  = 1<<letterIdxBits - 1
	letterIdxMax   = 63 / letterIdxBits
	numCharsPerStr = 7
)

func RandStr() string {
	n := numCharsPerStr
	b := make([]byte, n)
	for i, cache, remain := n-1, strSeed.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = strSeed.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(letterBytes) {
			b[i] = letterBytes[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}

	return string(b)
}
