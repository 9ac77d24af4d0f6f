package event

import (
	"encoding/json"
	"sort"
	"time"
)

// UnknownSystem labels files whose system could not be resolved.
const UnknownSystem = "unknown"

// Counts are the pass/fail tallies of one system.
type Counts struct {
	Pass int `json:"pass_count"`
	Fail int `json:"fail_count"`
}

// Summary aggregates a run. Only the scanner mutates it; it is read-only once
// MarkEnded has been called.
type Summary struct {
	PerSystem map[string]*Counts
	Start     time.Time
	End       time.Time

	ScannedBytes          int64
	ArchiveCount          int
	ArchiveCompressed     uint64
	ArchiveUncompressed   uint64
	UncompressedFileCount int
	UncompressedFileBytes int64
}

// NewSummary starts a summary clocked from now.
func NewSummary() *Summary {
	return &Summary{
		PerSystem: make(map[string]*Counts),
		Start:     time.Now(),
	}
}

func (s *Summary) counts(system string) *Counts {
	if system == "" {
		system = UnknownSystem
	}
	c, ok := s.PerSystem[system]
	if !ok {
		c = &Counts{}
		s.PerSystem[system] = c
	}
	return c
}

// AddSuccess records a passing file.
func (s *Summary) AddSuccess(system string) {
	s.counts(system).Pass++
}

// AddFailure records a failing file.
func (s *Summary) AddFailure(system string) {
	s.counts(system).Fail++
}

// Add records a report's outcome.
func (s *Summary) Add(r Report) {
	if r.Passed() {
		s.AddSuccess(r.System)
	} else {
		s.AddFailure(r.System)
	}
}

// MarkEnded stops the clock.
func (s *Summary) MarkEnded() {
	s.End = time.Now()
}

// Duration is the elapsed wall time, up to now if the run is still going.
func (s *Summary) Duration() time.Duration {
	if s.End.IsZero() {
		return time.Since(s.Start)
	}
	return s.End.Sub(s.Start)
}

// TotalPass sums passes across systems.
func (s *Summary) TotalPass() int {
	n := 0
	for _, c := range s.PerSystem {
		n += c.Pass
	}
	return n
}

// TotalFail sums failures across systems.
func (s *Summary) TotalFail() int {
	n := 0
	for _, c := range s.PerSystem {
		n += c.Fail
	}
	return n
}

// Systems returns the systems seen, sorted.
func (s *Summary) Systems() []string {
	names := make([]string, 0, len(s.PerSystem))
	for name := range s.PerSystem {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CompressionSaved is the number of bytes the scanned archives save over
// their contents.
func (s *Summary) CompressionSaved() uint64 {
	if s.ArchiveCompressed >= s.ArchiveUncompressed {
		return 0
	}
	return s.ArchiveUncompressed - s.ArchiveCompressed
}

// CompressionRatio is the percentage of space the scanned archives save, or
// 0 when no archive was seen.
func (s *Summary) CompressionRatio() float64 {
	if s.ArchiveUncompressed == 0 {
		return 0
	}
	return (1 - float64(s.ArchiveCompressed)/float64(s.ArchiveUncompressed)) * 100
}

type summaryJSON struct {
	PerSystem           map[string]*Counts `json:"per_system"`
	TotalPass           int                `json:"total_pass"`
	TotalFail           int                `json:"total_fail"`
	Duration            float64            `json:"duration"`
	ScannedBytes        int64              `json:"scanned_bytes"`
	ArchiveCompressed   uint64             `json:"archive_compressed_bytes"`
	ArchiveUncompressed uint64             `json:"archive_uncompressed_bytes"`
}

// MarshalJSON renders the summary with totals and duration in seconds.
func (s *Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		PerSystem:           s.PerSystem,
		TotalPass:           s.TotalPass(),
		TotalFail:           s.TotalFail(),
		Duration:            s.Duration().Seconds(),
		ScannedBytes:        s.ScannedBytes,
		ArchiveCompressed:   s.ArchiveCompressed,
		ArchiveUncompressed: s.ArchiveUncompressed,
	})
}
