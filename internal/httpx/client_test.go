package httpx

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPooledClient(t *testing.T) {
	c := NewPooledClient(50, 5*time.Second)
	assert.Equal(t, 5*time.Second, c.Timeout)

	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 50, tr.MaxIdleConnsPerHost)
	assert.Equal(t, 100, tr.MaxConnsPerHost)
}

func TestNewPooledClientDefaultsPoolSize(t *testing.T) {
	c := NewPooledClient(0, time.Second)
	tr := c.Transport.(*http.Transport)
	assert.Equal(t, defaultPoolSize, tr.MaxIdleConnsPerHost)
}
