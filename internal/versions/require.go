package versions

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ErrTooOld is returned when the running binary is older than a configuration requires
var ErrTooOld = errors.New("quorumdesk is older than the configuration requires")

// CheckRequirement verifies that current satisfies the minimum version required.
// An empty requirement always passes. Development builds are not semver and always pass.
func CheckRequirement(current, required string) error {
	if required == "" {
		return nil
	}
	minimum, err := semver.NewVersion(required)
	if err != nil {
		return fmt.Errorf("invalid version requirement %q: %w", required, err)
	}
	running, err := semver.NewVersion(current)
	if err != nil {
		return nil
	}
	if running.LessThan(minimum) {
		return fmt.Errorf("%w: running %s, need %s or newer", ErrTooOld, running, minimum)
	}
	return nil
}
