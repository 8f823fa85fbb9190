// Package report collects the reported and skipped conditions of a run
// into an audit report that can be stored as JSON and served later.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"
)

// Entry is one logged condition carrying an event category.
type Entry struct {
	Time    time.Time         `json:"time"`
	Level   string            `json:"level"`
	Event   string            `json:"event"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type Report struct {
	Started  time.Time                 `json:"started"`
	Finished time.Time                 `json:"finished,omitzero"`
	Result   map[string]int            `json:"result,omitempty"`
	Counts   map[string]map[string]int `json:"counts"` // event -> level -> n
	Entries  []Entry                   `json:"entries"`
}

func New() *Report {
	return &Report{Started: time.Now().UTC(), Counts: map[string]map[string]int{}}
}

func (r *Report) add(e Entry) {
	if r.Counts[e.Event] == nil {
		r.Counts[e.Event] = map[string]int{}
	}
	r.Counts[e.Event][e.Level]++
	r.Entries = append(r.Entries, e)
}

// Events returns the entries of category ev; "" returns all of them.
func (r *Report) Events(ev, level string) []Entry {
	out := []Entry{}
	for _, e := range r.Entries {
		if (ev == "" || e.Event == ev) && (level == "" || e.Level == level) {
			out = append(out, e)
		}
	}
	return out
}

// Total is the number of entries of category ev at any level.
func (r *Report) Total(ev string) int {
	n := 0
	for _, c := range r.Counts[ev] {
		n += c
	}
	return n
}

// EventNames lists the categories seen, sorted.
func (r *Report) EventNames() []string {
	out := make([]string, 0, len(r.Counts))
	for ev := range r.Counts {
		out = append(out, ev)
	}
	slices.Sort(out)
	return out
}

func (r *Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := r.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("report %s: %w", path, err)
	}
	return f.Close()
}

// Load reads a report written by WriteFile.
func Load(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	defer f.Close()
	var r Report
	if err := json.NewDecoder(f).Decode(&r); err != nil {
		return nil, fmt.Errorf("report %s: %w", path, err)
	}
	if r.Counts == nil {
		r.Counts = map[string]map[string]int{}
	}
	return &r, nil
}
