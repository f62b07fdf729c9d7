// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package feeder

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultTerminator marks the end of an epoch in u-blox style captures.
const DefaultTerminator = "$GPRMC"

// Batch is one epoch of recorded sentences. The last sentence is always the
// terminator sentence.
type Batch struct {
	Seq       int      `json:"seq"`
	Sentences []string `json:"sentences"`
}

// Bytes renders the batch as it would appear on the wire (CRLF line endings).
func (b Batch) Bytes() []byte {
	var sb strings.Builder
	for _, s := range b.Sentences {
		sb.WriteString(s)
		sb.WriteString("\r\n")
	}
	return []byte(sb.String())
}

// Terminator returns the sentence that closed the batch.
func (b Batch) Terminator() string {
	if len(b.Sentences) == 0 {
		return ""
	}
	return b.Sentences[len(b.Sentences)-1]
}

// LeadingToken returns the sentence address field, e.g. "$GPRMC".
func LeadingToken(line string) string {
	if i := strings.IndexByte(line, ','); i >= 0 {
		return line[:i]
	}
	return line
}

// ParseBatches splits r into epochs. A batch is sealed every time a line's
// leading token equals terminator; lines after the last terminator are
// dropped. On a read error the batches sealed so far are returned with it.
func ParseBatches(r io.Reader, terminator string) ([]Batch, error) {
	if terminator == "" {
		return nil, ErrInvalidTerminator
	}

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4*1024), 1024*1024)

	var (
		batches []Batch
		current []string
	)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		current = append(current, line)
		if LeadingToken(line) == terminator {
			batches = append(batches, Batch{Seq: len(batches), Sentences: current})
			current = nil
		}
	}
	if err := s.Err(); err != nil {
		return batches, fmt.Errorf("read sentences: %w", err)
	}
	return batches, nil
}
