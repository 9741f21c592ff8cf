package markov

// recentWindow is a fixed-capacity FIFO of the most recently emitted tokens.
// Pushing into a full window evicts the oldest entry.
type recentWindow struct {
	buf  []string
	head int // index of the oldest entry
	size int
}

func newRecentWindow(capacity int) *recentWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &recentWindow{buf: make([]string, capacity)}
}

func (r *recentWindow) push(token string) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = token
		r.size++
		return
	}
	r.buf[r.head] = token
	r.head = (r.head + 1) % len(r.buf)
}

func (r *recentWindow) contains(token string) bool {
	for i := 0; i < r.size; i++ {
		if r.buf[(r.head+i)%len(r.buf)] == token {
			return true
		}
	}
	return false
}

// items returns the window contents from oldest to newest.
func (r *recentWindow) items() []string {
	out := make([]string, r.size)
	for i := range out {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}
