package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusattend/internal/auth"
	"campusattend/internal/model"
)

func TestDevtokenMintsParsableToken(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "cli-test-key")
	t.Setenv("JWT_ISSUER", "cli-test")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--sub", "t1", "--role", "teacher"})
	require.NoError(t, cmd.Execute())

	claims, err := auth.Parse(strings.TrimSpace(out.String()), "cli-test-key", "cli-test")
	require.NoError(t, err)
	assert.Equal(t, "t1", claims.UserID())
	assert.Equal(t, model.RoleTeacher, claims.Role)
}

func TestDevtokenRejectsBadInput(t *testing.T) {
	for name, args := range map[string][]string{
		"missing sub":  {"--role", "student"},
		"unknown role": {"--sub", "s1", "--role", "janitor"},
	} {
		t.Run(name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(args)
			assert.Error(t, cmd.Execute())
		})
	}
}
