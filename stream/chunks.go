package stream

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// A chunkReader splits a streamed response body into chunks, each of which is
// one self-contained JSON value on its own line.
//
// Blank lines between chunks are skipped. Whether a chunk actually parses as
// JSON is the caller's concern: a complete but malformed line is still one
// chunk.
type chunkReader struct {
	r *bufio.Reader
}

func newChunkReader(r io.Reader) *chunkReader {
	return &chunkReader{r: bufio.NewReader(r)}
}

// next returns the next chunk, or io.EOF at the clean end of the stream.
// A trailing chunk without a line terminator is returned before EOF.
func (cr *chunkReader) next() ([]byte, error) {
	for {
		line, err := cr.r.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return line, nil
			}
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
}
