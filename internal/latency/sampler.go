package latency

import "context"

// MaxAttempts caps the raw outcomes consumed per target, replies and
// no-replies alike.
const MaxAttempts = 5

// Sample is the final sampling state of one target.
type Sample struct {
	Best     Best
	Attempts int
	Replies  int
}

// SampleSequence draws outcomes from seq until the attempt cap is reached,
// the sequence is exhausted, or a reply comes in below cutoff. The returned
// Best is the minimum over the replies consumed.
func SampleSequence(ctx context.Context, seq Sequence, cutoff float64) Sample {
	var s Sample
	for s.Attempts < MaxAttempts {
		o, ok := seq.Next(ctx)
		if !ok {
			break
		}
		s.Attempts++
		if !o.Replied() {
			continue
		}
		s.Replies++
		s.Best = s.Best.Update(o)
		if !ShouldContinue(o, cutoff) {
			break
		}
	}
	return s
}
