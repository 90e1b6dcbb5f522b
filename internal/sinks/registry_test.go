package sinks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	published []*Event
}

func (f *fakeSink) Name() string                { return "fake" }
func (f *fakeSink) Publish(event *Event) error  { f.published = append(f.published, event); return nil }
func (f *fakeSink) Health() error               { return nil }
func (f *fakeSink) Close() error                { return nil }

type fakeConfig struct{}

func (fakeConfig) Validate() error             { return nil }
func (fakeConfig) GetConnectionString() string { return "" }
func (fakeConfig) GetType() string             { return "fake" }

type fakeFactory struct {
	sink *fakeSink
}

func (f *fakeFactory) Create(config SinkConfig) (Sink, error) { return f.sink, nil }
func (f *fakeFactory) GetType() string                        { return "fake" }

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	factory := &fakeFactory{sink: &fakeSink{}}

	assert.False(t, registry.IsRegistered("fake"))

	registry.Register("fake", factory)
	assert.True(t, registry.IsRegistered("fake"))
	assert.Contains(t, registry.GetAvailableTypes(), "fake")

	sink, err := registry.Create("fake", fakeConfig{})
	require.NoError(t, err)
	assert.Equal(t, "fake", sink.Name())

	_, err = registry.Create("missing", fakeConfig{})
	assert.Error(t, err)
}
