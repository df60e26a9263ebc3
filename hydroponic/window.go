package hydroponic

// MinutesPerDay is the number of whole minutes in one calendar day.
const MinutesPerDay = 1440

func intersect(a0, a1, b0, b1 int64) int64 {
	lo := a0
	if b0 > lo {
		lo = b0
	}
	hi := a1
	if b1 < hi {
		hi = b1
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Overlap computes the number of minutes within the half-open window
// [s, e) (absolute minute indices) that fall inside the daily light
// window [lightOnHour, lightOffHour), supporting windows that cross
// midnight. lightOnHour == lightOffHour means "always on". This walks
// day-by-day and intersects each day's segment with the configured
// window, summing exact integer results.
func Overlap(s, e int64, lightOnHour, lightOffHour int) int64 {
	if e <= s {
		return 0
	}
	if lightOnHour == lightOffHour {
		return e - s
	}
	onMin := int64(lightOnHour) * 60
	offMin := int64(lightOffHour) * 60

	firstDay := s / MinutesPerDay
	lastDay := (e - 1) / MinutesPerDay

	var total int64
	for day := firstDay; day <= lastDay; day++ {
		dayStart := day * MinutesPerDay
		dayEnd := dayStart + MinutesPerDay
		segStart := s
		if dayStart > segStart {
			segStart = dayStart
		}
		segEnd := e
		if dayEnd < segEnd {
			segEnd = dayEnd
		}
		localStart := segStart - dayStart
		localEnd := segEnd - dayStart

		if lightOnHour < lightOffHour {
			total += intersect(localStart, localEnd, onMin, offMin)
		} else {
			total += intersect(localStart, localEnd, onMin, MinutesPerDay)
			total += intersect(localStart, localEnd, 0, offMin)
		}
	}
	return total
}
