package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProductIDs(t *testing.T) {
	ids, err := parseProductIDs([]string{"1", "42"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 42}, ids)

	for _, bad := range []string{"0", "-3", "abc"} {
		_, err := parseProductIDs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "ping", "score", "trending", "export"} {
		assert.True(t, names[want], want)
	}
}

func TestArgumentValidation(t *testing.T) {
	for _, args := range [][]string{
		{"score"},
		{"export"},
		{"migrate", "extra"},
	} {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(args)
		assert.Error(t, rootCmd.Execute(), args)
	}
}
