package frame

// compactThreshold is the consumed-prefix size past which Feed shifts the
// live bytes to the front instead of letting the buffer grow.
const compactThreshold = 64 * 1024

// Decoder reassembles frames from arbitrarily chunked stream reads.
// It owns its buffer; the zero value is ready to use. Not safe for
// concurrent use.
type Decoder struct {
	buf []byte
	off int
	err error
}

// Feed appends chunk and returns every frame completed by it, in order.
// After a framing violation the decoder stays failed and returns the same
// error on every call.
func (d *Decoder) Feed(chunk []byte) ([]Frame, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.compact()
	d.buf = append(d.buf, chunk...)

	frames, n, err := scan(d.buf[d.off:])
	if err != nil {
		d.err = err
		return nil, err
	}
	d.off += n
	if d.off == len(d.buf) {
		d.buf = d.buf[:0]
		d.off = 0
	}
	return frames, nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.off
}

// Err returns the framing violation that failed the decoder, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Reset drops buffered bytes and any recorded failure.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.off = 0
	d.err = nil
}

func (d *Decoder) compact() {
	if d.off == 0 {
		return
	}
	if d.off < compactThreshold && d.off < len(d.buf)/2 {
		return
	}
	n := copy(d.buf, d.buf[d.off:])
	d.buf = d.buf[:n]
	d.off = 0
}
