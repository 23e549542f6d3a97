package errors

import (
	"github.com/stretchr/testify/require"
	"log/slog"
	"slices"
	"testing"
)

func TestAnnotatedError(t *testing.T) {
	err := New("test error", slog.String("id", "123"))
	require.Equal(t, "test error", err.Error())

	// Assert that wrapping sentinel errors work as expected.
	sentinel := NewSentinel("test error")
	require.NotErrorIs(t, err, NewSentinel("test error"))
	wrapped := err.Wrap(sentinel)
	require.ErrorIs(t, wrapped, sentinel)

	// Ensure log values are coming through.
	group := err.LogValue().Group()
	require.Contains(t, group, slog.String("id", "123"))

	// Assert there's a valid source
	sourceIdx := slices.IndexFunc(group, func(attr slog.Attr) bool {
		return attr.Key == "source"
	})
	source := group[sourceIdx]
	require.Contains(t, source.Value.String(), "annotatederror_test.go")
}

func TestWrap(t *testing.T) {
	sentinel := NewSentinel("root cause")

	err := Wrap(sentinel, "load case file", slog.String("id", "abc"))
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, "load case file: root cause", err.Error())

	// Wrapping twice keeps the whole chain visible.
	outer := Wrap(err, "handle request")
	require.ErrorIs(t, outer, sentinel)
	require.Equal(t, "handle request: load case file: root cause", outer.Error())

	var annotated AnnotatedError
	require.True(t, As(outer, &annotated))
	group := annotated.LogValue().Group()
	wrappedIdx := slices.IndexFunc(group, func(attr slog.Attr) bool {
		return attr.Key == "wrapped"
	})
	require.GreaterOrEqual(t, wrappedIdx, 0, "wrapped annotated error not surfaced in log value")
}
