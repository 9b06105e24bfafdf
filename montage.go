package bcibridge

import (
	"fmt"
	"strings"
)

// Channel describes one published column of a stream.
type Channel struct {
	Label string `json:"label"`
	Unit  string `json:"unit"`
	Type  string `json:"type"`
}

// Montage is the ordered channel description of a stream. Its length is fixed when it
// is created; only the labels may be replaced, and replacing them yields a new Montage.
type Montage struct {
	channels []Channel
}

// DefaultUnit is the unit of every channel in a montage built by NewMontage.
const DefaultUnit = "microvolts"

var cytonLabels = []string{"Fp1", "Fp2", "C3", "C4", "P7", "P8", "O1", "O2"}
var daisyLabels = []string{"F7", "F8", "F3", "F4", "T7", "T8", "P3", "P4"}

// canonicalLabels returns the 10-20 positions of the standard OpenBCI cap for 8 or 16
// channels and chN names for any other count.
func canonicalLabels(nchan int) []string {
	switch nchan {
	case len(cytonLabels):
		return append([]string{}, cytonLabels...)
	case len(cytonLabels) + len(daisyLabels):
		return append(append([]string{}, cytonLabels...), daisyLabels...)
	}
	labels := make([]string, nchan)
	for i := range labels {
		labels[i] = fmt.Sprintf("ch%d", i+1)
	}
	return labels
}

// NewMontage creates a montage of nchan channels of the given signal type. With nil
// labels it generates canonical labels; otherwise exactly nchan labels are required.
func NewMontage(nchan int, labels []string, signalType string) (*Montage, error) {
	if nchan <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidChannelCount, nchan)
	}
	if labels == nil {
		labels = canonicalLabels(nchan)
	} else if len(labels) != nchan {
		return nil, fmt.Errorf("%w: %d labels given for %d channels", ErrInvalidChannelCount,
			len(labels), nchan)
	}
	if err := checkLabels(labels); err != nil {
		return nil, err
	}
	m := &Montage{channels: make([]Channel, nchan)}
	for i, label := range labels {
		m.channels[i] = Channel{Label: label, Unit: DefaultUnit, Type: signalType}
	}
	return m, nil
}

// ApplyNewLabels returns a copy of m with labels replaced positionally by the
// comma-separated list. The list must have exactly m.Len() entries, none of them blank;
// on failure m is returned unchanged together with an ErrMontageSizeMismatch error.
func (m *Montage) ApplyNewLabels(commaSeparated string) (*Montage, error) {
	labels := strings.Split(commaSeparated, ",")
	if len(labels) != len(m.channels) {
		return m, fmt.Errorf("%w: %d labels given, montage has %d channels",
			ErrMontageSizeMismatch, len(labels), len(m.channels))
	}
	for i := range labels {
		labels[i] = strings.TrimSpace(labels[i])
	}
	if err := checkLabels(labels); err != nil {
		return m, err
	}
	out := &Montage{channels: m.Channels()}
	for i, label := range labels {
		out.channels[i].Label = label
	}
	return out, nil
}

// checkLabels rejects blank labels, which would publish an unnamed column.
func checkLabels(labels []string) error {
	for i, label := range labels {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("%w: label %d of %d is empty", ErrMontageSizeMismatch, i+1, len(labels))
		}
	}
	return nil
}

// Len is the number of channels.
func (m *Montage) Len() int {
	return len(m.channels)
}

// Labels returns a copy of the channel labels in order.
func (m *Montage) Labels() []string {
	labels := make([]string, len(m.channels))
	for i, c := range m.channels {
		labels[i] = c.Label
	}
	return labels
}

// Channels returns a copy of the channel descriptions in order.
func (m *Montage) Channels() []Channel {
	return append([]Channel{}, m.channels...)
}
