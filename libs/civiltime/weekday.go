package civiltime

import (
	"errors"
	"fmt"
	"time"
)

// Weekday numbers days 0 (Sunday) through 6 (Saturday). This is the
// numbering stored in the database and accepted by the API.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var ErrInvalidWeekday = errors.New("weekday must be between 0 and 6")

// weekdayTable is the only translation from time.Weekday.
var weekdayTable = [7]Weekday{
	time.Sunday:    Sunday,
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
}

var weekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// ParseWeekday validates a raw weekday number.
func ParseWeekday(n int) (Weekday, error) {
	if n < 0 || n > 6 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidWeekday, n)
	}
	return Weekday(n), nil
}

func (d Weekday) Valid() bool { return d >= Sunday && d <= Saturday }

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}
