package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to unblock a producer whose output is no longer wanted, e.g. the
// frame channel of a released [CaptureStream] or an abandoned event feed.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
