package prompt

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// Reader hands out input lines while letting the caller give up on a pending
// read when its context ends. Scanning happens on a separate goroutine; a
// read abandoned there stays blocked until the input yields or the process exits.
type Reader struct {
	lines chan string
	done  chan struct{}
	once  sync.Once
	err   error
}

func NewReader(in io.Reader) *Reader {
	r := &Reader{
		lines: make(chan string),
		done:  make(chan struct{}),
	}
	go r.scan(in)
	return r
}

func (r *Reader) scan(in io.Reader) {
	defer close(r.lines)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		select {
		case r.lines <- sc.Text():
		case <-r.done:
			return
		}
	}
	// published to ReadLine by the close of r.lines
	r.err = sc.Err()
}

// ReadLine returns the next line without its newline. It returns io.EOF when
// the input ends and ctx.Err() when ctx is done first.
func (r *Reader) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-r.lines:
		if ok {
			return line, nil
		}
		if r.err != nil {
			return "", r.err
		}
		return "", io.EOF
	}
}

// Close stops handing out lines. It does not close the underlying input.
func (r *Reader) Close() {
	r.once.Do(func() { close(r.done) })
}
