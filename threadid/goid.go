package threadid

import "runtime"

// goid extracts the current goroutine's id from the header line of its
// stack trace, which has the fixed form "goroutine N [status]:". Go
// deliberately offers no cheaper portable accessor; the first line of a
// single-goroutine stack dump is stable across releases and the buffer
// below only needs to cover that header.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	const prefix = len("goroutine ")
	var id uint64
	for _, c := range buf[prefix:n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
