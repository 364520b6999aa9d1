package domain

import (
	"fmt"
	"regexp"
)

// MaxGraphIDLength bounds graph ids.
const MaxGraphIDLength = 128

// Graph ids name files in the file store, so they may not contain path
// separators or start with a dot.
var graphIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateGraphID checks that id is usable as a graph id.
func ValidateGraphID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("graph id is empty")
	case len(id) > MaxGraphIDLength:
		return fmt.Errorf("graph id %.16q... is longer than %d characters", id, MaxGraphIDLength)
	case !graphIDPattern.MatchString(id):
		return fmt.Errorf("graph id %q must start with a letter or digit and use only letters, digits, '_', '.' or '-'", id)
	}
	return nil
}
