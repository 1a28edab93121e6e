package null

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/onairstack/stagecast/internal/playout/frame"
)

func TestConsumer_PublishAlwaysSucceeds(t *testing.T) {
	c := New()
	err := c.Publish(context.Background(), frame.Frame{})
	assert.NoError(t, err)
	assert.Equal(t, "null", c.Name())
}
