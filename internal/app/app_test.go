package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/newsletter/internal/config"
)

func TestOpenDBRequiresURL(t *testing.T) {
	_, err := OpenDB(context.Background(), config.DatabaseConfig{})
	assert.EqualError(t, err, "DATABASE_URL is required")
}

func TestRandomSecretIsUnique(t *testing.T) {
	a, b := randomSecret(), randomSecret()
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
