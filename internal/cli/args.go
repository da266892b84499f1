package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseIDs converts positional arguments to numeric ids. Commas are
// accepted as separators within an argument.
func ParseIDs(args []string) ([]int, error) {
	var ids []int
	for _, arg := range args {
		for _, field := range strings.Split(arg, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			id, err := strconv.Atoi(field)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid id %q", field)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ParseDate parses a YYYYMMDD argument in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("20060102", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYYMMDD", s)
	}
	return t, nil
}

// FormatDurationShort renders an elapsed time as M:SS, or H:MM:SS past
// the hour. Sub-second remainders are dropped.
func FormatDurationShort(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Banner prints a section header in the style of the interactive tools.
func Banner(title string) {
	fmt.Println()
	fmt.Println("============================================")
	fmt.Println(title)
	fmt.Println("============================================")
}

// Separator prints a section divider.
func Separator() {
	fmt.Println("--------------------------------------------")
}

// MaskSecret hides all but the first four characters of a credential.
func MaskSecret(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) <= 8:
		return "****"
	}
	return s[:4] + "****"
}
