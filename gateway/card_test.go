package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCardNumber(t *testing.T) {
	assert.Equal(t, "4012001037141112", NormalizeCardNumber(" 4012-0010 3714\t1112 "))
}

func TestLuhn(t *testing.T) {
	assert.True(t, luhnValid("4929421234600821"))
	assert.True(t, luhnValid("5301250070000191"))
	assert.False(t, luhnValid("5301250070000192"))
}
