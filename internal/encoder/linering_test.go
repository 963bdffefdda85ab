// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRingKeepsLastLines(t *testing.T) {
	r := NewLineRing(3)
	_, _ = r.Write([]byte("one\ntwo\n"))
	_, _ = r.Write([]byte("three\nfour\n"))

	assert.Equal(t, []string{"two", "three", "four"}, r.LastN(3))
	assert.Equal(t, []string{"four"}, r.LastN(1))
}

func TestLineRingEmpty(t *testing.T) {
	r := NewLineRing(4)
	assert.Empty(t, r.LastN(4))
}
