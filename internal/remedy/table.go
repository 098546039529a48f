package remedy

import "strings"

// DefaultAdvice applies when no keyword matches a label.
const DefaultAdvice = "Consult a local agricultural expert for treatment advice."

// Entry pairs a label keyword with its treatment advice.
type Entry struct {
	Keyword string
	Text    string
}

// Table is an ordered keyword list. Lookup returns the first match in
// declaration order, not the longest or most specific one.
type Table struct {
	entries  []Entry
	keywords []string
	fallback string
}

// New copies entries so later changes to the slice don't affect lookups.
// An empty fallback selects DefaultAdvice.
func New(entries []Entry, fallback string) *Table {
	if fallback == "" {
		fallback = DefaultAdvice
	}
	t := &Table{
		entries:  make([]Entry, len(entries)),
		keywords: make([]string, len(entries)),
		fallback: fallback,
	}
	copy(t.entries, entries)
	for i, e := range entries {
		t.keywords[i] = strings.ToLower(e.Keyword)
	}
	return t
}

// Lookup matches keywords against label case-insensitively.
func (t *Table) Lookup(label string) string {
	l := strings.ToLower(label)
	for i, kw := range t.keywords {
		if kw != "" && strings.Contains(l, kw) {
			return t.entries[i].Text
		}
	}
	return t.fallback
}

func (t *Table) Fallback() string { return t.fallback }

func (t *Table) Len() int { return len(t.entries) }

// Entries returns a copy in lookup order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

var reference = []Entry{
	{"healthy", "Your crop looks healthy! Keep monitoring water and nutrients."},
	{"Bacterial_spot", "Use copper-based fungicides. Remove and destroy infected leaves."},
	{"Early_blight", "Remove infected leaves. Ensure good airflow. Apply chlorothalonil fungicide."},
	{"Late_blight", "Apply fungicides immediately. Avoid overhead watering. Destroy infected plants."},
	{"Leaf_Mold", "Improve ventilation. Apply fungicides. Avoid leaf wetness."},
	{"Septoria_leaf_spot", "Remove infected leaves. Apply fungicide at first sign."},
	{"Spider_mites", "Use miticide or neem oil. Keep plants well-watered."},
	{"Target_Spot", "Apply fungicide. Remove severely infected leaves."},
	{"Yellow_Leaf_Curl_Virus", "Control whiteflies (vector). Remove infected plants."},
	{"mosaic_virus", "Remove infected plants. Control aphids. Use virus-free seeds."},
}

// Default returns the reference remedy table.
func Default() *Table {
	return New(reference, DefaultAdvice)
}
