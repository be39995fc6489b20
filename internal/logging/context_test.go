package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestFromContext(t *testing.T) {
	base := zap.NewNop()
	reqLogger := zap.NewExample()

	assert.Same(t, base, FromContext(context.Background(), base))
	assert.Same(t, reqLogger, FromContext(ContextWithLogger(context.Background(), reqLogger), base))
	assert.NotNil(t, FromContext(context.Background()))
	// nil logger leaves the context untouched
	ctx := ContextWithLogger(context.Background(), nil)
	assert.Same(t, base, FromContext(ctx, base))
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := NewLogger("shop-api", "test", "loud")
	assert.Error(t, err)

	l, err := NewLogger("shop-api", "test", "debug")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}
