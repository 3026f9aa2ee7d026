package notify

import (
	"fmt"
	"time"
)

var frenchWeekdays = [...]string{"Dimanche", "Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi"}

var frenchMonths = [...]string{
	"janvier", "fevrier", "mars", "avril", "mai", "juin",
	"juillet", "aout", "septembre", "octobre", "novembre", "decembre",
}

// FormatDateFR renders an ISO date as a long French date, for example
// "Samedi 1 juin 2024".
func FormatDateFR(date string) (string, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("format date %q: %w", date, err)
	}
	return fmt.Sprintf("%s %d %s %d", frenchWeekdays[d.Weekday()], d.Day(), frenchMonths[d.Month()-1], d.Year()), nil
}
