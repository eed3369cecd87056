package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFlags(t *testing.T) {
	flags := parseFlags([]string{"--company", "c1", "--name", "Widget Pro", "stray", "--qty"})

	assert.Equal(t, map[string]string{"company": "c1", "name": "Widget Pro"}, flags)
}
