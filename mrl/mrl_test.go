package mrl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrl.software/mrl/mrl"
)

func Test_MRL_Path(t *testing.T) {
	m := mrl.New(mrl.CategoryCV, "ai.test", "toy")
	assert.Equal(t, "cv/ai/test/toy", m.Path())
	assert.Equal(t, "mrl:cv/ai/test/toy", m.String())
}

func Test_MRL_Equality(t *testing.T) {
	r := require.New(t)
	a := mrl.New(mrl.CategoryCV, "ai.test", "toy")
	b := mrl.New(mrl.CategoryCV, "ai.test", "toy")
	c := mrl.New(mrl.CategoryNLP, "ai.test", "toy")
	r.Equal(a, b)
	r.NotEqual(a, c)

	// comparable, usable as a map key
	seen := map[mrl.MRL]int{a: 1}
	r.Equal(1, seen[b])
}

func Test_MRL_IsZero(t *testing.T) {
	assert.True(t, mrl.MRL{}.IsZero())
	assert.False(t, mrl.New(mrl.CategoryUndefined, "g", "n").IsZero())
}
