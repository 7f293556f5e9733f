package qrs

// Pool is a fixed arena of beat records addressed by a rolling cursor.
// Advancing recycles the oldest slot, so no record is allocated per beat.
type Pool struct {
	recs   []Record
	cursor int
}

func NewPool(size, waveCapacity int) *Pool {
	if size < 2 {
		panic("qrs: pool needs at least two records")
	}
	p := &Pool{recs: make([]Record, size)}
	for i := range p.recs {
		p.recs[i].Wave = make([]float64, waveCapacity)
		p.recs[i].Reset()
	}
	return p
}

func (p *Pool) Len() int { return len(p.recs) }

func (p *Pool) Current() *Record { return &p.recs[p.cursor] }

// Past returns the record k beats before the current one. Past(0) is Current.
func (p *Pool) Past(k int) *Record {
	n := len(p.recs)
	return &p.recs[((p.cursor-k)%n+n)%n]
}

// Previous is Past(1) if it holds a located beat, nil otherwise.
func (p *Pool) Previous() *Record {
	prev := p.Past(1)
	if !prev.HasR() {
		return nil
	}
	return prev
}

// Advance moves to the next slot and resets it.
func (p *Pool) Advance() *Record {
	p.cursor = (p.cursor + 1) % len(p.recs)
	r := &p.recs[p.cursor]
	r.Reset()
	return r
}

// InsertBefore moves the current record one slot forward and returns the
// slot it left, which now sits between Past(1) and Current and still holds
// a copy of the current record.
func (p *Pool) InsertBefore() *Record {
	next := (p.cursor + 1) % len(p.recs)
	p.recs[next].Copy(&p.recs[p.cursor])
	freed := &p.recs[p.cursor]
	p.cursor = next
	return freed
}
