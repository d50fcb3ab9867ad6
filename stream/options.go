package stream

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// ValidFields are the payload sub-fields the server can be asked to include
// in version and set events
var ValidFields = []string{"diff", "prev", "document", "action"}

// Options configures a subscription
type Options struct {
	// Fields restricts which sub-fields the server includes in version and
	// set payloads. Empty means the server default (all of them).
	Fields []string
}

func (o Options) validate() error {
	for _, field := range o.Fields {
		if !slices.Contains(ValidFields, field) {
			return fmt.Errorf("valid stream fields are %v, got %q", ValidFields, field)
		}
	}
	return nil
}
