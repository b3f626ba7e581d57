package secrets

import (
	"errors"
	"testing"
)

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		missing []string
	}{
		{"all set", map[string]string{"DATABASE_URL": "postgres://db", "REDIS_URL": "redis://r"}, nil},
		{"none", nil, nil},
		{"blank", map[string]string{"REDIS_URL": "  ", "DATABASE_URL": ""}, []string{"DATABASE_URL", "REDIS_URL"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequired(tt.values)
			if tt.missing == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error %v is not a ValidationError", err)
			}
			if len(ve.Missing) != len(tt.missing) {
				t.Fatalf("missing %v, want %v", ve.Missing, tt.missing)
			}
			for i := range tt.missing {
				if ve.Missing[i] != tt.missing[i] {
					t.Errorf("missing %v, want %v", ve.Missing, tt.missing)
				}
			}
		})
	}
}
