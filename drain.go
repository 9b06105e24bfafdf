package bcibridge

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// ResponsePrefix marks lines of board text echoed to the operator.
const ResponsePrefix = "%\t"

// byteReader is the read side of a DeviceLink used for draining.
type byteReader interface {
	BytesWaiting() (int, error)
	ReadByte() (byte, error)
}

// Drainer empties the board's response buffer after a command, either echoing the text
// to the operator line by line or discarding it.
type Drainer struct {
	link        byteReader
	out         io.Writer
	settleDelay time.Duration
	byteDelay   time.Duration
}

// NewDrainer returns a Drainer that waits settle before reading and byteDelay after
// each byte read.
func NewDrainer(link byteReader, out io.Writer, settle, byteDelay time.Duration) *Drainer {
	return &Drainer{link: link, out: out, settleDelay: settle, byteDelay: byteDelay}
}

// decodeByte maps one received byte to a character. The board speaks ASCII; anything
// else becomes the Unicode replacement character.
func decodeByte(c byte) rune {
	if c < utf8.RuneSelf {
		return rune(c)
	}
	return utf8.RuneError
}

// Drain reads every byte currently waiting. Complete lines are printed with
// ResponsePrefix, and a trailing partial line is printed as-is, unless suppress is set.
// It returns the number of bytes read. A link error ends the drain early.
func (d *Drainer) Drain(suppress bool) (int, error) {
	time.Sleep(d.settleDelay)
	var pending strings.Builder
	nread := 0
	for {
		n, err := d.link.BytesWaiting()
		if err != nil {
			return nread, fmt.Errorf("draining board response: %w", err)
		}
		if n == 0 {
			break
		}
		c, err := d.link.ReadByte()
		if err != nil {
			return nread, fmt.Errorf("draining board response: %w", err)
		}
		nread++
		r := decodeByte(c)
		time.Sleep(d.byteDelay)
		if r != '\n' {
			pending.WriteRune(r)
			continue
		}
		if !suppress {
			fmt.Fprintf(d.out, "%s%s\n", ResponsePrefix, strings.TrimRight(pending.String(), "\r"))
		}
		pending.Reset()
	}
	if !suppress && pending.Len() > 0 {
		fmt.Fprintln(d.out, pending.String())
	}
	return nread, nil
}
