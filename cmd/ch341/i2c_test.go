package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexByte(t *testing.T) {
	b, err := hexByte("68", "address")
	require.NoError(t, err)
	assert.Equal(t, byte(0x68), b)

	_, err = hexByte("", "address")
	assert.ErrorContains(t, err, "address")

	_, err = hexByte("0421", "register")
	assert.Error(t, err)

	_, err = hexByte("zz", "register")
	assert.Error(t, err)
}
