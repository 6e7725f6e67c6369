package auth_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-auth-gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	storage := auth.NewMemoryStorage()

	value, err := storage.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, value)

	in := []byte(`{"a":1}`)
	require.NoError(t, storage.Save(ctx, "k", in))
	in[0] = 'x'

	value, err = storage.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(value), "saved values are copied")

	require.NoError(t, storage.Delete(ctx, "k"))
	value, err = storage.Load(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, value)
}
