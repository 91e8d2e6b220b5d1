package stream

import (
	"fmt"
	"slices"
)

// Timeline is the ordered sequence of ticks shared by every device. It grows
// by one slot per ingested sample regardless of how many devices exist.
type Timeline struct {
	labels []string
	stamps []int64
}

// FormatLabel renders a collector timestamp as minutes and zero-padded
// seconds, e.g. 61234 -> "1:01".
func FormatLabel(ms int64) string {
	secs := floorDiv(ms, 1000)
	mins := floorDiv(secs, 60)
	return fmt.Sprintf("%d:%02d", mins, secs-mins*60)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Len returns the number of ticks retained
func (t *Timeline) Len() int {
	return len(t.labels)
}

// Labels returns a copy of the tick labels, oldest first
func (t *Timeline) Labels() []string {
	return slices.Clone(t.labels)
}

// Timestamps returns a copy of the raw tick timestamps, oldest first
func (t *Timeline) Timestamps() []int64 {
	return slices.Clone(t.stamps)
}

// Label returns the label of tick i
func (t *Timeline) Label(i int) string {
	return t.labels[i]
}

func (t *Timeline) append(ms int64) string {
	label := FormatLabel(ms)
	t.labels = append(t.labels, label)
	t.stamps = append(t.stamps, ms)
	return label
}

func (t *Timeline) evict(n int) {
	t.labels = slices.Delete(t.labels, 0, n)
	t.stamps = slices.Delete(t.stamps, 0, n)
}

func (t *Timeline) clear() {
	t.labels = t.labels[:0]
	t.stamps = t.stamps[:0]
}
