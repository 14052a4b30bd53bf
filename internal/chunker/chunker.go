// Package chunker turns a file into a stream of fixed-size byte chunks for
// the sender, and turns a stream of delivered chunks back into a file for
// the receiver.
package chunker

import (
	"fmt"
	"io"
	"os"

	"rdt-over-udp-go/pkg/rdt"
)

// Stream reads path in rdt.UDPMaxChunkSize slices and sends each one on
// the returned channel, closing it once the file is exhausted or an error
// occurs. Errors are reported on errc; a send on errc is always followed
// by the channel being closed with no further chunks.
func Stream(path string) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errc)

		f, err := os.Open(path)
		if err != nil {
			errc <- fmt.Errorf("chunker: open %s: %w: %w", path, rdt.ErrIOFailure, err)
			return
		}
		defer f.Close()

		buf := make([]byte, rdt.UDPMaxChunkSize)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				chunks <- chunk
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				errc <- fmt.Errorf("chunker: read %s: %w: %w", path, rdt.ErrIOFailure, err)
				return
			}
		}
	}()

	return chunks, errc
}

// Sink writes chunks from in to path in the order received, creating or
// truncating the file. It returns once in is closed.
func Sink(path string, in <-chan rdt.DeliveredChunk) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("chunker: create %s: %w: %w", path, rdt.ErrIOFailure, err)
	}
	defer f.Close()

	for chunk := range in {
		if _, err := f.Write(chunk.Payload); err != nil {
			return fmt.Errorf("chunker: write %s: %w: %w", path, rdt.ErrIOFailure, err)
		}
	}
	return nil
}
