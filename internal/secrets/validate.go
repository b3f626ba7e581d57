package secrets

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError lists required settings that are unset.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", "))
}

// ValidateRequired checks that every named value is non-blank.
func ValidateRequired(values map[string]string) error {
	var missing []string
	for key, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return &ValidationError{Missing: missing}
}
