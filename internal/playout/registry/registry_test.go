package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onairstack/stagecast/internal/playout/frame"
	"github.com/onairstack/stagecast/internal/playout/producer"
)

type stubFactory struct {
	typ string
}

func (f *stubFactory) Type() string { return f.typ }

func (f *stubFactory) Create(params map[string]string) (producer.Producer, error) {
	return &stubProducer{name: f.typ, params: params}, nil
}

type stubProducer struct {
	name   string
	params map[string]string
}

func (p *stubProducer) Initialize(context.Context, producer.FrameFactory) error { return nil }
func (p *stubProducer) RenderFrame(context.Context) (frame.Frame, bool, error) {
	return frame.Frame{}, false, nil
}
func (p *stubProducer) FollowingProducer() producer.Producer { return nil }
func (p *stubProducer) SetLeadingProducer(producer.Producer) {}
func (p *stubProducer) Format() frame.FormatDesc              { return frame.FormatDesc{} }
func (p *stubProducer) Name() string                          { return p.name }

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New()
	r.Register(&stubFactory{typ: "color"})

	factory, err := r.Get("color")
	require.NoError(t, err)
	assert.Equal(t, "color", factory.Type())
}

func TestRegistry_GetUnknownType(t *testing.T) {
	r := New()
	_, err := r.Get("nonexistent")
	assert.Error(t, err)
}

func TestRegistry_Create(t *testing.T) {
	r := New()
	r.Register(&stubFactory{typ: "file"})

	p, err := r.Create("file", map[string]string{"path": "/tmp/clip.mov"})
	require.NoError(t, err)
	assert.Equal(t, "file", p.Name())
}

func TestRegistry_SupportedTypes(t *testing.T) {
	r := New()
	r.Register(&stubFactory{typ: "file"})
	r.Register(&stubFactory{typ: "image"})

	types := r.SupportedTypes()
	assert.ElementsMatch(t, []string{"file", "image"}, types)
}

func TestRegistry_RegisterEmptyCreatesEmptyProducer(t *testing.T) {
	r := New()
	format := frame.FormatDesc{Width: 1920, Height: 1080, FrameRateNum: 25, FrameRateDen: 1}
	r.RegisterEmpty(format)

	p, err := r.Create("empty", nil)
	require.NoError(t, err)
	assert.Equal(t, "empty", p.Name())
	assert.Equal(t, format, p.Format())
}
