package i18n

import "time"

// RelativeTime returns how long ago t was, in words.
func RelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return T("common.time.justNow", "just now")
	case d < time.Hour:
		return Tn("common.time.minsAgo", "{{.Count}} min ago", "{{.Count}} mins ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return Tn("common.time.hoursAgo", "{{.Count}} hour ago", "{{.Count}} hours ago", int(d.Hours()))
	default:
		return Tn("common.time.daysAgo", "{{.Count}} day ago", "{{.Count}} days ago", int(d.Hours()/24))
	}
}
