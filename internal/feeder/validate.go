package feeder

import (
	"errors"
	"fmt"

	nmea "github.com/adrianmo/go-nmea"
)

// Issue describes a sentence in a fixture that the NMEA parser rejects.
type Issue struct {
	Batch    int    `json:"batch"`
	Line     int    `json:"line"`
	Sentence string `json:"sentence"`
	Err      string `json:"error"`
}

func (i Issue) String() string {
	return fmt.Sprintf("batch %d line %d: %s (%s)", i.Batch, i.Line, i.Err, i.Sentence)
}

// Validate runs every sentence through the NMEA parser and reports the ones
// with bad checksums or malformed fields. Unsupported sentence types are not
// reported; they are still played back verbatim.
func Validate(batches []Batch) []Issue {
	var issues []Issue
	for _, b := range batches {
		for i, s := range b.Sentences {
			if _, err := nmea.Parse(s); err != nil {
				var unsupported *nmea.NotSupportedError
				if errors.As(err, &unsupported) {
					continue
				}
				issues = append(issues, Issue{Batch: b.Seq, Line: i, Sentence: s, Err: err.Error()})
			}
		}
	}
	return issues
}
