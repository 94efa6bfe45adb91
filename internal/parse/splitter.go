// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse turns PubMed citation XML into canonical JSONL records.
// The pipeline is split → extract → normalize → encode: a linear scanner
// slices the input into per-article blocks, each block is decoded for a
// fixed field subset, field fallback policies are applied, and the result
// is written as one compact JSON line.
package parse

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	articleOpen  = "<PubmedArticle"
	articleClose = "</PubmedArticle>"

	readChunk = 32 * 1024
)

// Block is one article's XML fragment as sliced from the input stream.
type Block struct {
	// Key is the article PMID, or "unknown-<ordinal>" when the block
	// carries no detectable PMID. Blocks are never dropped for a missing
	// PMID at this stage.
	Key string

	// Ordinal is the 1-based position of the block in the input.
	Ordinal int

	// XML is the verbatim fragment from <PubmedArticle> through
	// </PubmedArticle>, sub-elements unparsed.
	XML []byte
}

// Splitter slices a stream of PubMed XML into article blocks with a single
// forward scan. It tracks nesting only at the PubmedArticle boundary, so a
// wrapping PubmedArticleSet envelope is optional: a bare PubmedArticle
// stream is accepted as a one-article collection. At most one block is
// buffered at a time.
type Splitter struct {
	r       *bufio.Reader
	buf     []byte
	ordinal int
	diag    io.Writer
	eof     bool
}

// NewSplitter returns a Splitter reading from r. Diagnostics for discarded
// partial blocks go to diag; pass io.Discard to silence them.
func NewSplitter(r io.Reader, diag io.Writer) *Splitter {
	if diag == nil {
		diag = io.Discard
	}
	return &Splitter{r: bufio.NewReaderSize(r, readChunk), diag: diag}
}

// Next returns the next article block, or io.EOF when the stream is
// exhausted. An unterminated trailing block is discarded with a diagnostic;
// previously returned blocks are unaffected.
func (s *Splitter) Next() (Block, error) {
	start, err := s.findOpen()
	if err != nil {
		return Block{}, err
	}

	end, err := s.findClose(start)
	if err != nil {
		return Block{}, err
	}

	s.ordinal++
	frag := make([]byte, end-start)
	copy(frag, s.buf[start:end])
	s.buf = s.buf[end:]

	b := Block{Ordinal: s.ordinal, XML: frag}
	b.Key = scanPMID(frag)
	if b.Key == "" {
		b.Key = fmt.Sprintf("unknown-%d", s.ordinal)
	}
	return b, nil
}

// findOpen scans forward for the next article open tag, discarding bytes
// that precede it so memory stays bounded by one block.
func (s *Splitter) findOpen() (int, error) {
	for {
		if i := indexTag(s.buf, articleOpen); i >= 0 {
			return i, nil
		}
		// Keep a tail that could hold a split tag prefix.
		if len(s.buf) > len(articleOpen) {
			s.buf = s.buf[len(s.buf)-len(articleOpen):]
		}
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
}

// findClose scans from the open tag at start, tracking nested article tags,
// and returns the offset just past the matching close tag.
func (s *Splitter) findClose(start int) (int, error) {
	depth := 0
	pos := start
	for {
		open := indexTag(s.buf[pos:], articleOpen)
		closeIdx := bytes.Index(s.buf[pos:], []byte(articleClose))

		switch {
		case open >= 0 && (closeIdx < 0 || open < closeIdx):
			depth++
			pos += open + len(articleOpen)
		case closeIdx >= 0:
			depth--
			pos += closeIdx + len(articleClose)
			if depth == 0 {
				return pos, nil
			}
		default:
			// Neither tag in the buffered region: read more, leaving a
			// margin so a tag split across reads is still found.
			if pos > start+len(articleClose) {
				pos -= len(articleClose)
			}
			if err := s.fill(); err != nil {
				if err == io.EOF {
					fmt.Fprintf(s.diag, "warning: discarding unterminated article block at end of input\n")
				}
				return 0, err
			}
		}
	}
}

// fill appends the next chunk from the reader to the buffer.
func (s *Splitter) fill() error {
	if s.eof {
		return io.EOF
	}
	chunk := make([]byte, readChunk)
	n, err := s.r.Read(chunk)
	if n > 0 {
		s.buf = append(s.buf, chunk[:n]...)
	}
	if err == io.EOF {
		s.eof = true
		if n == 0 {
			return io.EOF
		}
		return nil
	}
	return err
}

// indexTag finds tag in b, requiring the following byte to terminate the
// tag name. This keeps "<PubmedArticle" from matching "<PubmedArticleSet".
func indexTag(b []byte, tag string) int {
	off := 0
	for {
		i := bytes.Index(b[off:], []byte(tag))
		if i < 0 {
			return -1
		}
		i += off
		rest := b[i+len(tag):]
		if len(rest) == 0 {
			// Tag possibly split across reads; treat as not found so the
			// caller buffers more input.
			return -1
		}
		switch rest[0] {
		case '>', ' ', '\t', '\n', '\r', '/':
			return i
		}
		off = i + len(tag)
	}
}

// scanPMID pulls the first <PMID ...>text</PMID> out of a block without a
// full XML parse. Used only to key blocks before extraction.
func scanPMID(block []byte) string {
	i := bytes.Index(block, []byte("<PMID"))
	if i < 0 {
		return ""
	}
	rest := block[i+len("<PMID"):]
	if len(rest) > 0 && rest[0] != '>' && rest[0] != ' ' && rest[0] != '\t' {
		return ""
	}
	gt := bytes.IndexByte(rest, '>')
	if gt < 0 {
		return ""
	}
	end := bytes.Index(rest[gt+1:], []byte("</PMID>"))
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(string(rest[gt+1 : gt+1+end]))
}

// inputReader wraps a file and an optional gzip layer so both close together.
type inputReader struct {
	io.Reader
	closers []io.Closer
}

func (r *inputReader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens an input path for the parse pipeline. "-" means stdin.
// Files named *.gz are decompressed transparently; detection is by
// filename suffix, not content sniffing.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip input %s: %w", path, err)
	}
	return &inputReader{Reader: gz, closers: []io.Closer{gz, f}}, nil
}
