package tlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestContextCarriage(t *testing.T) {
	logger := NewForTesting(t)
	ctx := WithLogger(context.Background(), logger)
	require.Same(t, logger, Get(ctx))

	derived := With(ctx, zap.String("key", "value"))
	require.NotSame(t, logger, Get(derived))
	require.Same(t, logger, Get(ctx))

	require.Panics(t, func() { Get(context.Background()) })
}

func TestNew(t *testing.T) {
	require.NotNil(t, New(Config{Format: FormatJSON}))
	require.NotNil(t, New(Config{Format: FormatText, Color: ColorNo, Verbose: true}))
	require.Panics(t, func() { New(Config{Format: "bogus"}) })
}
