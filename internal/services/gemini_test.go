package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestModelCache_SameCredentialBuildsOnce(t *testing.T) {
	factory := &countingFactory{}
	cache := NewModelCache(factory.build)

	first, err := cache.Get(context.Background(), "key-one")
	require.NoError(t, err)
	second, err := cache.Get(context.Background(), "key-one")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, factory.built)
	assert.Equal(t, 1, cache.Len())
}

func TestModelCache_ConcurrentFirstUse(t *testing.T) {
	factory := &countingFactory{}
	cache := NewModelCache(factory.build)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Get(context.Background(), "shared")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, factory.built)
}

func TestModelCache_DistinctCredentials(t *testing.T) {
	factory := &countingFactory{}
	cache := NewModelCache(factory.build)

	_, err := cache.Get(context.Background(), "alpha")
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), "beta")
	require.NoError(t, err)

	assert.Equal(t, 2, factory.built)
	assert.Equal(t, []string{"alpha", "beta"}, factory.keys)
}

func TestModelCache_MissingCredential(t *testing.T) {
	factory := &countingFactory{}
	cache := NewModelCache(factory.build)

	for _, key := range []string{"", "   "} {
		_, err := cache.Get(context.Background(), key)
		assert.ErrorIs(t, err, ErrCredentialMissing)
	}
	assert.Equal(t, 0, factory.built)
}

func TestModelCache_FactoryErrorNotCached(t *testing.T) {
	factory := &countingFactory{err: errors.New("boom")}
	cache := NewModelCache(factory.build)

	_, err := cache.Get(context.Background(), "key")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	factory.err = nil
	_, err = cache.Get(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestModelCache_Close(t *testing.T) {
	factory := &countingFactory{}
	cache := NewModelCache(factory.build)

	_, err := cache.Get(context.Background(), "key")
	require.NoError(t, err)

	cache.Close()
	assert.True(t, factory.gen.closed)
	assert.Equal(t, 0, cache.Len())
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("secret")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint("secret"))
	assert.NotEqual(t, a, Fingerprint("secret2"))
	assert.NotContains(t, a, "secret")
}

func TestIsRateLimited(t *testing.T) {
	grpcExhausted := status.Error(codes.ResourceExhausted, "slow down")
	apiErr, ok := apierror.FromError(grpcExhausted)
	require.True(t, ok)

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"googleapi 429", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"googleapi 500", &googleapi.Error{Code: http.StatusInternalServerError, Message: "backend"}, false},
		{"grpc resource exhausted", grpcExhausted, true},
		{"apierror resource exhausted", apiErr, true},
		{"wrapped grpc", fmt.Errorf("generate: %w", grpcExhausted), true},
		{"grpc permission denied", status.Error(codes.PermissionDenied, "bad key"), false},
		{"text 429", errors.New("received 429 from upstream"), true},
		{"text quota mixed case", errors.New("You exceeded your current QUOTA"), true},
		{"plain failure", errors.New("connection reset by peer"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsRateLimited(tc.err))
		})
	}
}
