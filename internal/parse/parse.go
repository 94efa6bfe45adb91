// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/pdiddy/pm-tools/pkg/types"
)

// Result summarizes one pipeline run.
type Result struct {
	// Parsed is the number of records written.
	Parsed int

	// Skipped is the number of blocks discarded because they failed to
	// decode.
	Skipped int
}

// Run drives the full pipeline: split r into article blocks, extract and
// normalize each one, and write a canonical JSON line per record to w.
// Diagnostics and verbose progress go to diag. Blocks are independent, so
// cfg.Workers > 1 shards them across goroutines; cfg.Ordered keeps output
// in input order, which keyed consumers do not need but reproducible
// byte-level comparisons do.
func Run(r io.Reader, w io.Writer, cfg types.ParseConfig, diag io.Writer) (Result, error) {
	if diag == nil {
		diag = io.Discard
	}
	if cfg.Workers > 1 {
		return runParallel(r, w, cfg, diag)
	}

	split := NewSplitter(r, diag)
	bw := bufio.NewWriter(w)
	var res Result
	for {
		block, err := split.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, err
		}
		line, a, perr := processBlock(block)
		if perr != nil {
			fmt.Fprintf(diag, "warning: skipping block %d: %v\n", block.Ordinal, perr)
			res.Skipped++
			continue
		}
		bw.Write(line)
		bw.WriteByte('\n')
		res.Parsed++
		if cfg.Verbose {
			fmt.Fprintf(diag, "Parsed article %d: PMID %s\n", res.Parsed, a.PMID)
		}
	}
	return res, bw.Flush()
}

// processBlock runs extract → normalize → encode for one block.
func processBlock(block Block) ([]byte, types.Article, error) {
	raw, err := Extract(block.XML)
	if err != nil {
		return nil, types.Article{}, err
	}
	a := Normalize(raw, block.Key)
	return EncodeLine(a), a, nil
}

type outcome struct {
	ordinal int
	pmid    string
	line    []byte
	err     error
}

func runParallel(r io.Reader, w io.Writer, cfg types.ParseConfig, diag io.Writer) (Result, error) {
	split := NewSplitter(r, diag)
	blocks := make(chan Block)
	results := make(chan outcome, cfg.Workers)

	var readErr error
	go func() {
		defer close(blocks)
		for {
			b, err := split.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				readErr = err
				return
			}
			blocks <- b
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range blocks {
				line, a, err := processBlock(b)
				results <- outcome{ordinal: b.Ordinal, pmid: a.PMID, line: line, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	bw := bufio.NewWriter(w)
	var res Result
	emit := func(o outcome) {
		if o.err != nil {
			fmt.Fprintf(diag, "warning: skipping block %d: %v\n", o.ordinal, o.err)
			res.Skipped++
			return
		}
		bw.Write(o.line)
		bw.WriteByte('\n')
		res.Parsed++
		if cfg.Verbose {
			fmt.Fprintf(diag, "Parsed article %d: PMID %s\n", res.Parsed, o.pmid)
		}
	}

	if cfg.Ordered {
		pending := make(map[int]outcome)
		next := 1
		for o := range results {
			pending[o.ordinal] = o
			for {
				p, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				emit(p)
			}
		}
	} else {
		for o := range results {
			emit(o)
		}
	}

	if readErr != nil {
		return res, readErr
	}
	return res, bw.Flush()
}
