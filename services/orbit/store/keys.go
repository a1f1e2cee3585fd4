// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"fmt"

	"github.com/AleutianAI/AleutianBeta/services/orbit"
)

// Key layout. Orbit keys render as "{group}:{index:08d}" and block
// indices are zero-padded, so lexicographic iteration over any prefix
// walks entries in numeric order.
//
//	input:poly:{group}:{idx}            seeded minimal polynomial
//	input:root:{group}:{idx}            seeded decimal root approximation
//	orbit:poly:{group}:{idx}:{startN}   polynomial iterate block
//	orbit:coef:{group}:{idx}:{startN}   digit block
//	orbit:status:{group}:{idx}          OrbitStatus record
//	orbit:periodic:{group}:{idx}        PeriodicityRecord
//	orbit:mono:{group}:{idx}            MonotonicityRecord
//	summary:{group}                     GroupSummary aggregate
const (
	inputPolyPrefix = "input:poly:"
	inputRootPrefix = "input:root:"
	orbitPolyPrefix = "orbit:poly:"
	orbitCoefPrefix = "orbit:coef:"
	statusPrefix    = "orbit:status:"
	periodicPrefix  = "orbit:periodic:"
	monoPrefix      = "orbit:mono:"
	summaryPrefix   = "summary:"
)

func inputPolyKey(k orbit.OrbitKey) []byte {
	return []byte(inputPolyPrefix + k.String())
}

func inputRootKey(k orbit.OrbitKey) []byte {
	return []byte(inputRootPrefix + k.String())
}

func statusKey(k orbit.OrbitKey) []byte {
	return []byte(statusPrefix + k.String())
}

func periodicKey(k orbit.OrbitKey) []byte {
	return []byte(periodicPrefix + k.String())
}

func monoKey(k orbit.OrbitKey) []byte {
	return []byte(monoPrefix + k.String())
}

func summaryKey(g orbit.GroupKey) []byte {
	return []byte(summaryPrefix + g.String())
}

// polyBlockPrefix is the prefix of all polynomial blocks of one orbit.
func polyBlockPrefix(k orbit.OrbitKey) string {
	return fmt.Sprintf("%s%s:", orbitPolyPrefix, k)
}

// polyBlockKey addresses the block whose first iterate is B_startN.
func polyBlockKey(k orbit.OrbitKey, startN int) []byte {
	return []byte(fmt.Sprintf("%s%012d", polyBlockPrefix(k), startN))
}

// coefBlockPrefix is the prefix of all digit blocks of one orbit.
func coefBlockPrefix(k orbit.OrbitKey) string {
	return fmt.Sprintf("%s%s:", orbitCoefPrefix, k)
}

// coefBlockKey addresses the block whose first digit is c_startN.
func coefBlockKey(k orbit.OrbitKey, startN int) []byte {
	return []byte(fmt.Sprintf("%s%012d", coefBlockPrefix(k), startN))
}

// parseBlockStart extracts the startN suffix from a block key.
func parseBlockStart(key []byte, prefixLen int) (int, error) {
	var startN int
	if _, err := fmt.Sscanf(string(key[prefixLen:]), "%012d", &startN); err != nil {
		return 0, fmt.Errorf("%w: block key %q", orbit.ErrBadKey, key)
	}
	return startN, nil
}
