// Package authztest builds access control fixtures for unit tests.
package authztest

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/logger"
)

// Principals used across package tests.
var (
	// Editor has every right in namespace "tenant-a".
	Editor = authz.Principal{Name: "alice", Namespace: "tenant-a"}
	// Viewer may only read in namespace "tenant-a".
	Viewer = authz.Principal{Name: "bob", Namespace: "tenant-a"}
	// Outsider has every right in namespace "tenant-b".
	Outsider = authz.Principal{Name: "carol", Namespace: "tenant-b"}
)

// New returns an enforcing access control with the fixture principals and no
// decision cache.
func New(t *testing.T) *authz.CasbinAccessControl {
	t.Helper()
	return NewWithMode(t, authz.ModeEnforce)
}

// NewWithMode is New with a different enforcement mode.
func NewWithMode(t *testing.T, mode authz.Mode) *authz.CasbinAccessControl {
	t.Helper()
	enforcer, err := authz.NewEnforcer(
		[][]string{
			{"editor", "tenant-a", "*", "*"},
			{"viewer", "tenant-a", "*", "read"},
			{"editor", "tenant-b", "*", "*"},
		},
		[][]string{
			{Editor.Name, "editor", "tenant-a"},
			{Viewer.Name, "viewer", "tenant-a"},
			{Outsider.Name, "editor", "tenant-b"},
		},
	)
	require.NoError(t, err)
	return authz.NewCasbinAccessControl(enforcer, mode, 0, logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))
}
