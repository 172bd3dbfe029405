// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mbeema/veil/pkg/discovery"
)

// RunText redacts the lines of src into dst as one run. Line endings are
// kept as they were. TWO_PASS reads the input twice: an io.Seeker is
// rewound for the second pass, any other reader is buffered in memory.
func (e *Engine) RunText(ctx context.Context, src io.Reader, dst io.Writer) (Report, error) {
	r, err := e.begin()
	if err != nil {
		return Report{}, err
	}
	w := bufio.NewWriter(dst)

	switch e.mode {
	case discovery.TwoPass:
		err = e.runTextTwoPass(ctx, r, src, w)
	case discovery.Fast:
		err = eachLine(ctx, src, func(line, eol string) error {
			e.disc.ObserveText(line)
			e.disc.Tick()
			r.report.Lines++
			return writeLine(w, e.RedactLine(line), eol)
		})
	default:
		err = eachLine(ctx, src, func(line, eol string) error {
			r.report.Lines++
			return writeLine(w, e.RedactLine(line), eol)
		})
	}
	if err != nil {
		return Report{}, err
	}
	if err := w.Flush(); err != nil {
		return Report{}, fmt.Errorf("write output: %w", err)
	}
	return e.finish(r), nil
}

func (e *Engine) runTextTwoPass(ctx context.Context, r *run, src io.Reader, w *bufio.Writer) error {
	type line struct{ text, eol string }
	var buffered []line
	var origin int64
	seeker, canSeek := src.(io.Seeker)
	if canSeek {
		// Pipes and terminals are Seekers that fail to seek.
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			canSeek = false
		}
		origin = pos
	}

	err := eachLine(ctx, src, func(text, eol string) error {
		e.disc.ObserveText(text)
		if !canSeek {
			buffered = append(buffered, line{text, eol})
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := e.resolve(ctx, r); err != nil {
		return err
	}

	if !canSeek {
		for _, l := range buffered {
			r.report.Lines++
			if err := writeLine(w, e.RedactLine(l.text), l.eol); err != nil {
				return err
			}
		}
		return nil
	}
	if _, err := seeker.Seek(origin, io.SeekStart); err != nil {
		return fmt.Errorf("rewind input: %w", err)
	}
	return eachLine(ctx, src, func(text, eol string) error {
		r.report.Lines++
		return writeLine(w, e.RedactLine(text), eol)
	})
}

// RedactString runs a whole text through RunText.
func (e *Engine) RedactString(ctx context.Context, text string) (string, error) {
	var b strings.Builder
	if _, err := e.RunText(ctx, strings.NewReader(text), &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// eachLine calls fn for every line with its terminator ("\n", "\r\n" or
// "" for a final unterminated line).
func eachLine(ctx context.Context, src io.Reader, fn func(line, eol string) error) error {
	br := bufio.NewReader(src)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := br.ReadString('\n')
		if len(s) > 0 {
			text, eol := s, ""
			if strings.HasSuffix(text, "\n") {
				text, eol = text[:len(text)-1], "\n"
				if strings.HasSuffix(text, "\r") {
					text, eol = text[:len(text)-1], "\r\n"
				}
			}
			if ferr := fn(text, eol); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
}

func writeLine(w *bufio.Writer, line, eol string) error {
	if _, err := w.WriteString(line); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if _, err := w.WriteString(eol); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
