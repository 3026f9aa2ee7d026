package application

import (
	"fmt"
	"strings"
)

// PoolKeyPolicy derives the capacity pool a reservation counts against.
type PoolKeyPolicy func(date, timeOfDay string) string

// PoolByDate shares one pool across every time slot of a date.
func PoolByDate(date, _ string) string {
	return date
}

// PoolByDateAndTime gives each time slot of a date its own pool.
func PoolByDateAndTime(date, timeOfDay string) string {
	return date + "|" + timeOfDay
}

// ParsePoolKeyPolicy resolves a configured policy name.
func ParsePoolKeyPolicy(name string) (PoolKeyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "date":
		return PoolByDate, nil
	case "date_time":
		return PoolByDateAndTime, nil
	default:
		return nil, fmt.Errorf("unknown pool key policy %q", name)
	}
}
