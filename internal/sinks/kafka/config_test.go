package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "missing brokers",
			config:  &Config{},
			wantErr: true,
		},
		{
			name:    "empty broker address",
			config:  &Config{Brokers: []string{"localhost:9092", ""}},
			wantErr: true,
		},
		{
			name:    "invalid security protocol",
			config:  &Config{Brokers: []string{"localhost:9092"}, SecurityProtocol: "KERBEROS"},
			wantErr: true,
		},
		{
			name: "sasl requires credentials",
			config: &Config{
				Brokers:          []string{"localhost:9092"},
				SecurityProtocol: "SASL_SSL",
			},
			wantErr: true,
		},
		{
			name: "sasl with credentials",
			config: &Config{
				Brokers:          []string{"localhost:9092"},
				SecurityProtocol: "SASL_SSL",
				SASLUsername:     "user",
				SASLPassword:     "pass",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigDefaultsApplied(t *testing.T) {
	config := &Config{Brokers: []string{"localhost:9092"}}
	assert.NoError(t, config.Validate())
	assert.Equal(t, "clicks", config.Topic)
	assert.Equal(t, "click-router", config.ClientID)
	assert.Equal(t, "PLAINTEXT", config.SecurityProtocol)
}
