package memory

import (
	"click-router/internal/storage"
)

type Factory struct{}

func (f *Factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	return NewStore(), nil
}

func (f *Factory) GetType() string {
	return "memory"
}

func init() {
	storage.Register("memory", &Factory{})
}
