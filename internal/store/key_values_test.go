// ABOUTME: Tests for the typed key/value helpers
// ABOUTME: Covers round trips, defaults, decode fallbacks and the created flag

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValue_IntRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	_, _, err := s.SetKeyValueInt(ctx, "global", "timeout", 30)
	require.NoError(t, err)

	assert.Equal(t, int64(30), s.GetKeyValueInt(ctx, "global", "timeout", 0))
	assert.Equal(t, int64(7), s.GetKeyValueInt(ctx, "global", "missing", 7))
}

func TestKeyValue_StringRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	kv, _, err := s.SetKeyValueString(ctx, "sidebar", "width", `wide "panel"`)
	require.NoError(t, err)
	assert.Equal(t, `"wide \"panel\""`, kv.Value)

	assert.Equal(t, `wide "panel"`, s.GetKeyValueString(ctx, "sidebar", "width", "narrow"))
	assert.Equal(t, "narrow", s.GetKeyValueString(ctx, "sidebar", "height", "narrow"))
}

func TestKeyValue_DecodeFailureReturnsDefault(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	_, _, err := s.SetKeyValueString(ctx, "ns", "k", "not a number")
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.GetKeyValueInt(ctx, "ns", "k", 5))

	_, _, err = s.SetKeyValueInt(ctx, "ns", "n", 12)
	require.NoError(t, err)
	assert.Equal(t, "fallback", s.GetKeyValueString(ctx, "ns", "n", "fallback"))

	_, _, err = s.SetKeyValueRaw(ctx, "ns", "nil", "null")
	require.NoError(t, err)
	assert.Equal(t, "fallback", s.GetKeyValueString(ctx, "ns", "nil", "fallback"))
	assert.Equal(t, int64(7), s.GetKeyValueInt(ctx, "ns", "nil", 7))
}

func TestKeyValue_CreatedFlagAndTimestamps(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	first, created, err := s.SetKeyValueInt(ctx, "ns", "k", 1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)

	second, created, err := s.SetKeyValueInt(ctx, "ns", "k", 2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, "2", second.Value)
}

func TestKeyValue_NamespacesAreIndependent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	_, _, err := s.SetKeyValueInt(ctx, "a", "k", 1)
	require.NoError(t, err)
	_, _, err = s.SetKeyValueInt(ctx, "b", "k", 2)
	require.NoError(t, err)

	assert.Equal(t, int64(1), s.GetKeyValueInt(ctx, "a", "k", 0))
	assert.Equal(t, int64(2), s.GetKeyValueInt(ctx, "b", "k", 0))

	list, err := s.ListKeyValues(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestKeyValue_RawRejectsInvalidJSON(t *testing.T) {
	s, rec := newTestStore(t)

	_, _, err := s.SetKeyValueRaw(t.Context(), "ns", "k", "{broken")
	assert.Error(t, err)
	assert.Empty(t, rec.Events())
}

func TestKeyValue_NotifiesAndDeletes(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := t.Context()

	kv, _, err := s.SetKeyValueString(ctx, "ns", "k", "v")
	require.NoError(t, err)
	assert.Len(t, rec.Filter(ChannelUpserted, KindKeyValue), 1)

	deleted, err := s.DeleteKeyValue(ctx, "ns", "k")
	require.NoError(t, err)
	assert.Equal(t, kv, deleted)
	assert.Len(t, rec.Filter(ChannelDeleted, KindKeyValue), 1)

	_, err = s.DeleteKeyValue(ctx, "ns", "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "gone", s.GetKeyValueString(ctx, "ns", "k", "gone"))
}
