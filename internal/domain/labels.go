package domain

import (
	"fmt"
	"math/rand"
)

// LabelPrefix is the textual prefix shared by every anonymized label.
// Evaluators are instructed to refer to responses only by these labels.
const LabelPrefix = "Response "

// LabelMap is the run-scoped, bidirectional mapping between anonymized
// labels ("Response A", "Response B", ...) and model identifiers.
// Labels are assigned exactly once per run; the mapping must never leak
// into any prompt shown to the models being judged.
type LabelMap struct {
	order   []string
	byLabel map[string]string
	byModel map[string]string
}

// AssignLabels builds a LabelMap over Stage-1 responses. By default
// labels follow collection order, which keeps assignment deterministic
// for a fixed model list. When shuffle is true the assignment order is
// randomized with the given source to decouple evaluator position bias
// from Stage-1 ordering.
func AssignLabels(responses []ModelResponse, shuffle bool, rng *rand.Rand) LabelMap {
	indexes := make([]int, len(responses))
	for i := range indexes {
		indexes[i] = i
	}
	if shuffle && rng != nil {
		rng.Shuffle(len(indexes), func(i, j int) {
			indexes[i], indexes[j] = indexes[j], indexes[i]
		})
	}

	m := LabelMap{
		order:   make([]string, 0, len(responses)),
		byLabel: make(map[string]string, len(responses)),
		byModel: make(map[string]string, len(responses)),
	}
	for pos, idx := range indexes {
		label := fmt.Sprintf("%s%c", LabelPrefix, 'A'+pos)
		m.order = append(m.order, label)
		m.byLabel[label] = responses[idx].Model
		m.byModel[responses[idx].Model] = label
	}
	return m
}

// Labels returns all labels in assignment order.
func (m LabelMap) Labels() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Model resolves a label back to its model identifier.
func (m LabelMap) Model(label string) (string, bool) {
	model, ok := m.byLabel[label]
	return model, ok
}

// Label resolves a model identifier to its anonymized label.
func (m LabelMap) Label(model string) (string, bool) {
	label, ok := m.byModel[model]
	return label, ok
}

// Len returns the number of labeled responses.
func (m LabelMap) Len() int { return len(m.order) }

// ToMap exports the label-to-model mapping for run metadata.
func (m LabelMap) ToMap() map[string]string {
	out := make(map[string]string, len(m.byLabel))
	for k, v := range m.byLabel {
		out[k] = v
	}
	return out
}
