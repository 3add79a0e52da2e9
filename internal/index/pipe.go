package index

// unbounded returns a channel pair joined by a growable buffer: sends on in
// never block on the receiver. Closing in closes out once the buffer drains.
func unbounded[T any]() (chan<- T, <-chan T) {
	in := make(chan T)
	out := make(chan T)
	go func() {
		defer close(out)
		src := in
		var buf []T
		for src != nil || len(buf) > 0 {
			var dst chan T
			var next T
			if len(buf) > 0 {
				dst = out
				next = buf[0]
			}
			select {
			case v, ok := <-src:
				if !ok {
					src = nil
					continue
				}
				buf = append(buf, v)
			case dst <- next:
				var zero T
				buf[0] = zero
				buf = buf[1:]
			}
		}
	}()
	return in, out
}
