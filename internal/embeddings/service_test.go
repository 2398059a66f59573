package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid",
			config: Config{BaseURL: "http://localhost:8080/v1", Model: "text-embedding-3-small"},
		},
		{
			name:    "missing base URL",
			config:  Config{Model: "text-embedding-3-small"},
			wantErr: true,
		},
		{
			name:    "missing model",
			config:  Config{BaseURL: "http://localhost:8080/v1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewService(t *testing.T) {
	svc, err := NewService(Config{
		BaseURL: "http://localhost:8080/v1",
		Model:   "text-embedding-3-small",
	})
	require.NoError(t, err)
	assert.NotNil(t, svc)
	assert.Nil(t, svc.limiter)
}

func TestNewServiceWithLimiter(t *testing.T) {
	svc, err := NewService(Config{
		BaseURL:           "http://localhost:8080/v1",
		Model:             "text-embedding-3-small",
		RequestsPerSecond: 5,
	})
	require.NoError(t, err)
	assert.NotNil(t, svc.limiter)
}

func TestNewServiceInvalidConfig(t *testing.T) {
	_, err := NewService(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEmbedValidation(t *testing.T) {
	svc, err := NewService(Config{
		BaseURL: "http://localhost:8080/v1",
		Model:   "text-embedding-3-small",
	})
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}
