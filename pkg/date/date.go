package date

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layout is the ISO-8601 day layout used for persisted history and JSON.
const Layout = "2006-01-02"

// lenient layouts accepted by Parse, tried in order.
var layouts = []string{
	Layout,
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"20060102",
	time.RFC3339,
	time.RFC3339Nano,
}

// Date is a calendar day without time of day or zone.
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date (day overflow rolls into the next month).
func New(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{t.Year(), t.Month(), t.Day()}
}

// Of returns the calendar day of t in t's own location.
func Of(t time.Time) Date { return New(t.Date()) }

// Today returns the current local date.
func Today() Date { return Of(time.Now()) }

func (d Date) Year() int         { return d.y }
func (d Date) Month() time.Month { return d.m }
func (d Date) Day() int          { return d.d }

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool { return d.y == 0 && d.m == 0 && d.d == 0 }

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

func (d Date) String() string { return d.Time().Format(Layout) }

// Add returns d shifted by n days.
func (d Date) Add(n int) Date { return New(d.y, d.m, d.d+n) }

// Sub returns the number of days from x to d.
func (d Date) Sub(x Date) int {
	return int(d.Time().Sub(x.Time()).Hours() / 24)
}

func (d Date) Before(x Date) bool { return d.Compare(x) < 0 }
func (d Date) After(x Date) bool  { return d.Compare(x) > 0 }

// Compare returns -1, 0 or +1.
func (d Date) Compare(x Date) int {
	switch {
	case d.y != x.y:
		return cmpInt(d.y, x.y)
	case d.m != x.m:
		return cmpInt(int(d.m), int(x.m))
	default:
		return cmpInt(d.d, x.d)
	}
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Parse reads a day in one of the accepted layouts or as unix seconds.
func Parse(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return Of(t), nil
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 && len(s) > 8 {
		return Of(time.Unix(ts, 0).UTC()), nil
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

// MustParse is Parse for literals; it panics on error.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
