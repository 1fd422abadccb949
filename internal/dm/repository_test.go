package dm

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOrderPairIsStable(t *testing.T) {
	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	first, second := orderPair(a, b)
	assert.Equal(t, a, first)
	assert.Equal(t, b, second)

	first, second = orderPair(b, a)
	assert.Equal(t, a, first)
	assert.Equal(t, b, second)
}

func TestOrderPairSameUser(t *testing.T) {
	a := uuid.New()
	first, second := orderPair(a, a)
	assert.Equal(t, a, first)
	assert.Equal(t, a, second)
}
