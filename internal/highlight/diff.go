package highlight

import "github.com/cptaffe/acme-crafts/style"

// PalettesEqual reports whether a and b define the same names with the same
// looks, in any order.
func PalettesEqual(a, b []style.PaletteEntry) bool {
	if len(a) != len(b) {
		return false
	}
	bm := make(map[string]style.PaletteEntry, len(b))
	for _, e := range b {
		bm[e.Name] = e
	}
	for _, e := range a {
		be, ok := bm[e.Name]
		if !ok || !e.Equal(be) {
			return false
		}
	}
	return true
}

// Changed finds the smallest interval [q0, q1) outside which the two sorted
// run lists agree.  changed is false when they are identical.
func Changed(old, new []style.Run) (q0, q1 int, changed bool) {
	i := 0
	for i < len(old) && i < len(new) && old[i] == new[i] {
		i++
	}
	if i == len(old) && i == len(new) {
		return 0, 0, false
	}

	ei, ej := len(old)-1, len(new)-1
	for ei >= i && ej >= i && old[ei] == new[ej] {
		ei--
		ej--
	}

	first := true
	widen := func(runs []style.Run) {
		for _, r := range runs {
			if first || r.Start < q0 {
				q0 = r.Start
			}
			if first || r.End > q1 {
				q1 = r.End
			}
			first = false
		}
	}
	widen(old[i : ei+1])
	widen(new[i : ej+1])
	return q0, q1, !first
}

// Inserted returns runs moved to account for n runes inserted at q0.  Text
// inserted strictly inside a run widens it; text at a boundary belongs to
// the run on the right.
func Inserted(runs []style.Run, q0, n int) []style.Run {
	out := make([]style.Run, len(runs))
	for i, r := range runs {
		if q0 <= r.Start {
			r.Start += n
		}
		if q0 < r.End {
			r.End += n
		}
		out[i] = r
	}
	return out
}

// Deleted returns runs moved to account for the deletion of runes
// [q0, q1).  Runs that lie wholly inside the deletion are dropped.
func Deleted(runs []style.Run, q0, q1 int) []style.Run {
	out := make([]style.Run, 0, len(runs))
	shrink := func(p int) int {
		switch {
		case p <= q0:
			return p
		case p >= q1:
			return p - (q1 - q0)
		}
		return q0
	}
	for _, r := range runs {
		r.Start, r.End = shrink(r.Start), shrink(r.End)
		if r.End > r.Start {
			out = append(out, r)
		}
	}
	return out
}
