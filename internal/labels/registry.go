// Package labels holds the ordered disease catalog indexed by classifier output.
package labels

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Registry maps a class index to its disease label. It is immutable once built.
type Registry struct {
	labels []string
	index  map[string]int
}

// Reconciliation describes how a candidate catalog was fitted to the
// classifier output width.
type Reconciliation struct {
	Candidates int
	Width      int
	Truncated  int
	Padded     int
}

// Changed reports whether the candidate list had to be altered.
func (r Reconciliation) Changed() bool {
	return r.Truncated > 0 || r.Padded > 0
}

// Reconcile builds a registry of exactly k labels from candidates. Extra
// candidates are dropped; missing ones become Unknown_class_{i}.
func Reconcile(candidates []string, k int) (*Registry, Reconciliation) {
	if k < 0 {
		k = 0
	}
	rec := Reconciliation{Candidates: len(candidates), Width: k}

	out := make([]string, k)
	n := copy(out, candidates)
	if len(candidates) > k {
		rec.Truncated = len(candidates) - k
	}
	for i := n; i < k; i++ {
		out[i] = fmt.Sprintf("Unknown_class_%d", i)
		rec.Padded++
	}

	return newRegistry(out), rec
}

func newRegistry(labels []string) *Registry {
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		if _, dup := index[l]; !dup {
			index[l] = i
		}
	}
	return &Registry{labels: labels, index: index}
}

func (r *Registry) Len() int { return len(r.labels) }

// Label returns the label at class index i.
func (r *Registry) Label(i int) (string, bool) {
	if i < 0 || i >= len(r.labels) {
		return "", false
	}
	return r.labels[i], true
}

func (r *Registry) Contains(label string) bool {
	_, ok := r.index[label]
	return ok
}

// All returns a copy of the labels in index order.
func (r *Registry) All() []string {
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// LoadFile reads one label per line. Blank lines and lines starting with #
// are skipped.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return out, nil
}
