package authz

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

// newTestAccessControl grants alice full rights and bob read rights in
// tenant-a, and carol full rights in tenant-b.
func newTestAccessControl(t *testing.T, mode Mode, ttl time.Duration) *CasbinAccessControl {
	t.Helper()
	enforcer, err := NewEnforcer(
		[][]string{
			{"editor", "tenant-a", "*", "*"},
			{"viewer", "tenant-a", "*", "read"},
			{"editor", "tenant-b", "*", "*"},
			{"auditor", "*", "alert", "read"},
		},
		[][]string{
			{"alice", "editor", "tenant-a"},
			{"bob", "viewer", "tenant-a"},
			{"carol", "editor", "tenant-b"},
			{"dave", "auditor", "*"},
		},
	)
	require.NoError(t, err)
	return NewCasbinAccessControl(enforcer, mode, ttl, testLogger())
}

func alertIn(namespace string) *entities.Alert {
	return &entities.Alert{BaseEntity: entities.BaseEntity{Namespace: namespace}, Name: "a"}
}

func TestCasbinAccessControl_RoleDecisions(t *testing.T) {
	t.Parallel()
	ac := newTestAccessControl(t, ModeEnforce, 0)
	ctx := t.Context()

	alice := Principal{Name: "alice", Namespace: "tenant-a"}
	bob := Principal{Name: "bob", Namespace: "tenant-a"}
	dave := Principal{Name: "dave", Namespace: "tenant-a"}
	alert := alertIn("tenant-a")

	require.NoError(t, ac.EnsureCanCreate(ctx, alice, alert))
	require.NoError(t, ac.EnsureCanDelete(ctx, alice, alert))
	require.NoError(t, ac.EnsureCanRead(ctx, bob, alert))

	err := ac.EnsureCanDelete(ctx, bob, alert)
	require.Error(t, err)
	assert.True(t, errors.IsForbidden(err))

	assert.True(t, ac.CanRead(ctx, dave, alert), "global role applies in every domain")
	assert.False(t, ac.CanRead(ctx, dave, &entities.Anomaly{BaseEntity: entities.BaseEntity{Namespace: "tenant-a"}}))
}

func TestCasbinAccessControl_NamespaceBoundary(t *testing.T) {
	t.Parallel()
	ac := newTestAccessControl(t, ModeEnforce, 0)
	ctx := t.Context()

	carol := Principal{Name: "carol", Namespace: "tenant-b"}
	alert := alertIn("tenant-a")

	assert.False(t, ac.CanRead(ctx, carol, alert))
	assert.True(t, errors.IsForbidden(ac.EnsureNamespace(carol, alert)))

	// Carol cannot move a tenant-b alert into tenant-a through an edit.
	existing := alertIn("tenant-b")
	moved := alertIn("tenant-a")
	require.NoError(t, ac.EnsureCanEdit(ctx, carol, existing, alertIn("tenant-b")))
	assert.True(t, errors.IsForbidden(ac.EnsureCanEdit(ctx, carol, existing, moved)))
}

func TestCasbinAccessControl_EnrichNamespace(t *testing.T) {
	t.Parallel()
	ac := newTestAccessControl(t, ModeEnforce, 0)

	p := Principal{Name: "alice", Namespace: "tenant-a"}
	fresh := alertIn("")
	ac.EnrichNamespace(p, fresh)
	assert.Equal(t, "tenant-a", fresh.Namespace)

	foreign := alertIn("tenant-b")
	ac.EnrichNamespace(p, foreign)
	assert.Equal(t, "tenant-b", foreign.Namespace, "an explicit namespace is left for the access check")
}

func TestCasbinAccessControl_DefaultNamespace(t *testing.T) {
	t.Parallel()
	enforcer, err := NewEnforcer([][]string{{"ops", DefaultNamespace, "*", "*"}}, nil)
	require.NoError(t, err)
	ac := NewCasbinAccessControl(enforcer, ModeEnforce, 0, testLogger())

	ops := Principal{Name: "ops"}
	assert.NoError(t, ac.EnsureCanCreate(t.Context(), ops, alertIn("")))
}

func TestCasbinAccessControl_Modes(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	mallory := Principal{Name: "mallory", Namespace: "tenant-a"}

	shadow := newTestAccessControl(t, ModeShadow, 0)
	assert.NoError(t, shadow.EnsureCanDelete(ctx, mallory, alertIn("tenant-a")))

	disabled := newTestAccessControl(t, ModeDisabled, 0)
	assert.NoError(t, disabled.EnsureCanDelete(ctx, mallory, alertIn("tenant-b")))

	enforce := newTestAccessControl(t, ModeEnforce, 0)
	assert.Error(t, enforce.EnsureCanDelete(ctx, mallory, alertIn("tenant-a")))
}

func TestCasbinAccessControl_CacheInvalidation(t *testing.T) {
	t.Parallel()
	enforcer, err := NewEnforcer([][]string{{"erin", "tenant-a", "alert", "read"}}, nil)
	require.NoError(t, err)
	ac := NewCasbinAccessControl(enforcer, ModeEnforce, time.Hour, testLogger())
	ctx := t.Context()

	erin := Principal{Name: "erin", Namespace: "tenant-a"}
	alert := alertIn("tenant-a")
	require.True(t, ac.CanRead(ctx, erin, alert))

	_, err = enforcer.RemovePolicy("erin", "tenant-a", "alert", "read")
	require.NoError(t, err)
	assert.True(t, ac.CanRead(ctx, erin, alert), "cached decision is served")

	ac.InvalidateCache("tenant-b", entities.ResourceAlert)
	assert.True(t, ac.CanRead(ctx, erin, alert), "other namespaces do not evict")

	ac.InvalidateCache("tenant-a", entities.ResourceAlert)
	assert.False(t, ac.CanRead(ctx, erin, alert))
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ModeShadow, ParseMode(" Shadow "))
	assert.Equal(t, ModeDisabled, ParseMode("disabled"))
	assert.Equal(t, ModeEnforce, ParseMode("anything"))
}
