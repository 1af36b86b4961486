package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusWord(t *testing.T) {
	assert.Equal(t, "success", statusWord(true))
	assert.Equal(t, "failed", statusWord(false))
}
