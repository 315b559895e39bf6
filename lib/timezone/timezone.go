package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/Los_Angeles")
	if err != nil {
		panic(err)
	}
}

// every portal this library talks to renders dates in campus local time,
// so pin the clock to Pacific regardless of where the process runs to keep
// <time.Time>.Year()/Month()/Day()/Hour() math consistent
func Now() time.Time {
	return time.Now().In(Location)
}
