package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "json info", config: Config{Level: "info", Format: "json"}},
		{name: "console debug", config: Config{Level: "debug", Format: "console"}},
		{name: "bad level", config: Config{Level: "verbose", Format: "json"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, err := New(Config{Level: "warn", Format: "json"})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	ctx = WithNamespace(ctx, "acme__finance__knowledgebase")
	ctx = WithRequestID(ctx, "req-123")

	fields := ContextFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "namespace", fields[0].Key)
	assert.Equal(t, "acme__finance__knowledgebase", fields[0].String)
	assert.Equal(t, "request_id", fields[1].Key)
	assert.Equal(t, "req-123", fields[1].String)
}

func TestContextFieldsEmptyValuesIgnored(t *testing.T) {
	ctx := WithNamespace(context.Background(), "")
	ctx = WithRequestID(ctx, "")

	assert.Empty(t, ContextFields(ctx))
	assert.Empty(t, NamespaceFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(ctx))
}

func TestNewTestLoggerObserves(t *testing.T) {
	logger, observed := NewTestLogger()

	logger.Info("document ingested")
	logger.Debug("detail")

	assert.Equal(t, 2, observed.Len())
	assert.Len(t, observed.FilterMessage("document ingested").All(), 1)
}
