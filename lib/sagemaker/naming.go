package sagemaker

import (
	"fmt"
	"strings"

	"github.com/raulk/clock"
)

const MaxNameLength = 63

// NameFromBase appends a millisecond timestamp to base, trimming base so the
// result fits in MaxNameLength characters.
func NameFromBase(clk clock.Clock, base string) string {
	now := clk.Now().UTC()
	ts := fmt.Sprintf("%s-%03d", now.Format("2006-01-02-15-04-05"), now.Nanosecond()/1e6)
	if max := MaxNameLength - len(ts) - 1; len(base) > max {
		base = base[:max]
	}
	return base + "-" + ts
}

// BaseNameFromImage extracts the repository name of an image URI, e.g.
// sagemaker-tensorflow from <registry>/sagemaker-tensorflow:1.11.0-cpu-py2.
func BaseNameFromImage(image string) string {
	name := image
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, ":"); i >= 0 {
		name = name[:i]
	}
	return name
}
