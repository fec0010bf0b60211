package batch

import "fmt"

// job is the state of one generation call. It is owned by the goroutine
// running the scheduler and dropped when the call returns.
type job struct {
	totalChars     int
	processedChars int
	totalBatches   int
	lastPercent    int

	// slots counts dispatched batches across the whole job.
	slots    int
	filled   map[int]bool
	chunks   [][]byte
	produced int
}

func newJob(totalChars, totalBatches int) *job {
	return &job{totalChars: totalChars, totalBatches: totalBatches, filled: map[int]bool{}}
}

func (j *job) nextSlot() int {
	slot := j.slots
	j.slots++
	return slot
}

// append stores the audio for slot. A slot takes at most one append, so a
// retried batch can never leave a duplicate chunk behind.
func (j *job) append(slot int, data []byte) error {
	if j.filled[slot] {
		return fmt.Errorf("batch slot %d already holds audio", slot)
	}
	j.filled[slot] = true
	if len(data) == 0 {
		return nil
	}
	j.chunks = append(j.chunks, data)
	j.produced++
	return nil
}

func (j *job) resetChunks() {
	j.chunks = nil
}

func (j *job) pcmBytes() int {
	n := 0
	for _, c := range j.chunks {
		n += len(c)
	}
	return n
}

func (j *job) advance(chars int) {
	j.processedChars += chars
}

// percent never decreases and never exceeds 100.
func (j *job) percent() int {
	p := 0
	if j.totalChars > 0 {
		p = j.processedChars * 100 / j.totalChars
	}
	if p > 100 {
		p = 100
	}
	if p < j.lastPercent {
		p = j.lastPercent
	}
	j.lastPercent = p
	return p
}
