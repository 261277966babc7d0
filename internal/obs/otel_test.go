package obs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{ServiceName: "courtbook"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStart(t *testing.T) {
	ctx, finish := Start(context.Background(), "test")
	assert.NotNil(t, ctx)
	finish(errors.New("boom"))
}
