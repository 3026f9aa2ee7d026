package unavailability

import (
	"context"
	"slices"
)

// Static is a fixed blackout list.
type Static []string

// ListAll returns a copy of the list.
func (s Static) ListAll(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone([]string(s)), nil
}
