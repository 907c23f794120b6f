package question

// recent is a fixed-size ring of display strings.
type recent struct {
	buf  []string
	next int
	full bool
}

func newRecent(size int) *recent {
	return &recent{buf: make([]string, size)}
}

func (r *recent) contains(display string) bool {
	n := r.next
	if r.full {
		n = len(r.buf)
	}
	for i := 0; i < n; i++ {
		if r.buf[i] == display {
			return true
		}
	}
	return false
}

func (r *recent) push(display string) {
	if len(r.buf) == 0 {
		return
	}
	r.buf[r.next] = display
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *recent) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}
