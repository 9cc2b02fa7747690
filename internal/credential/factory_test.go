package credential

import (
	"testing"

	"zipup/internal/config"
)

func TestNewTokenStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.CredentialConfig
		want    string
		wantErr bool
	}{
		{"age", config.CredentialConfig{Type: "age", TokenPath: "/tmp/t.age"}, "*credential.AgeTokenStore", false},
		{"default is age", config.CredentialConfig{TokenPath: "/tmp/t.age"}, "*credential.AgeTokenStore", false},
		{"memory", config.CredentialConfig{Type: "memory"}, "*credential.MemoryTokenStore", false},
		{"age without path", config.CredentialConfig{Type: "age"}, "", true},
		{"unknown", config.CredentialConfig{Type: "keyring"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTokenStoreFromConfig(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("NewTokenStoreFromConfig() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTokenStoreFromConfig() error = %v", err)
			}
			switch tt.want {
			case "*credential.AgeTokenStore":
				if _, ok := got.(*AgeTokenStore); !ok {
					t.Errorf("got %T, want %s", got, tt.want)
				}
			case "*credential.MemoryTokenStore":
				if _, ok := got.(*MemoryTokenStore); !ok {
					t.Errorf("got %T, want %s", got, tt.want)
				}
			}
		})
	}
}
