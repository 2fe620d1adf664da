package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenEstimator(t *testing.T) {
	e := NewTokenEstimator()

	assert.Equal(t, 0, e.Estimate(""))

	short := e.Estimate("hello world")
	long := e.Estimate(strings.Repeat("hello world ", 200))
	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)
}

func TestHeuristicTokens(t *testing.T) {
	assert.Equal(t, 0, heuristicTokens(""))
	assert.Equal(t, 1, heuristicTokens("abcd"))
	assert.Equal(t, 2, heuristicTokens("abcde"))
	assert.Equal(t, 3, heuristicTokens("細胞膜"))
}
