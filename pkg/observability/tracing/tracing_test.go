package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncats/biggim-gateway/pkg/common/config"
)

func TestInitWithoutHostIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), &config.Config{ServiceName: "biggim-gateway"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}
