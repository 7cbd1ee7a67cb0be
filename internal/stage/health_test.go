package stage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/stage"
)

func TestRunAllReportsEachProbe(t *testing.T) {
	down := errors.New("503 service unavailable")
	results := stage.RunAll(context.Background(), []stage.Probe{
		{Name: "storage", Checker: stage.CheckerFunc(func(context.Context) error { return nil }), Required: true},
		{Name: "engine", Checker: stage.CheckerFunc(func(context.Context) error { return down })},
		{Name: "speech", Checker: stage.CheckerFunc(func(context.Context) error { return down }), Required: true},
		{Name: "unset"},
	})
	require.Len(t, results, 4)
	assert.True(t, results[0].Ready)
	assert.False(t, results[1].Ready)
	assert.False(t, results[1].Required)
	assert.True(t, results[3].Ready)

	blocking, ok := stage.Blocking(results)
	require.True(t, ok)
	assert.Equal(t, "speech", blocking.Name)
	assert.ErrorIs(t, blocking.Err, down)
	assert.Equal(t, "503 service unavailable", blocking.Detail)
}

func TestBlockingNoneWhenOptionalFails(t *testing.T) {
	_, ok := stage.Blocking([]stage.Health{stage.Healthy("a"), stage.Unhealthy("b", "offline")})
	assert.False(t, ok)
}
