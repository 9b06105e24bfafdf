package bcibridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMontage(t *testing.T) {
	m, err := NewMontage(4, []string{"C3", "C4", "P3", "P4"}, "EEG")
	require.NoError(t, err)
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, []string{"C3", "C4", "P3", "P4"}, m.Labels())
	for _, c := range m.Channels() {
		assert.Equal(t, DefaultUnit, c.Unit)
		assert.Equal(t, "EEG", c.Type)
	}

	for _, nchan := range []int{0, -3} {
		if _, err := NewMontage(nchan, nil, "EEG"); !errors.Is(err, ErrInvalidChannelCount) {
			t.Errorf("NewMontage(%d) error = %v, want ErrInvalidChannelCount", nchan, err)
		}
	}
	_, err = NewMontage(8, []string{"C3", "C4", "P3", "P4"}, "EEG")
	assert.ErrorIs(t, err, ErrInvalidChannelCount)
	_, err = NewMontage(3, []string{"C3", "", "P3"}, "EEG")
	assert.ErrorIs(t, err, ErrMontageSizeMismatch)
}

func TestSingleChannelEmptyLoc(t *testing.T) {
	m, err := NewMontage(1, nil, "EEG")
	require.NoError(t, err)
	same, err := m.ApplyNewLabels("")
	assert.ErrorIs(t, err, ErrMontageSizeMismatch)
	assert.Same(t, m, same)
	assert.Equal(t, []string{"ch1"}, m.Labels())
}

func TestCanonicalLabels(t *testing.T) {
	m, err := NewMontage(8, nil, "EEG")
	require.NoError(t, err)
	assert.Equal(t, cytonLabels, m.Labels())

	m, err = NewMontage(16, nil, "EEG")
	require.NoError(t, err)
	assert.Equal(t, "Fp1", m.Labels()[0])
	assert.Equal(t, "P4", m.Labels()[15])

	m, err = NewMontage(3, nil, "EEG")
	require.NoError(t, err)
	assert.Equal(t, []string{"ch1", "ch2", "ch3"}, m.Labels())

	// Generated labels must not alias the package tables.
	m, _ = NewMontage(8, nil, "EEG")
	m2, _ := m.ApplyNewLabels("a,b,c,d,e,f,g,h")
	assert.Equal(t, "Fp1", cytonLabels[0])
	assert.Equal(t, "a", m2.Labels()[0])
}

func TestApplyNewLabels(t *testing.T) {
	m, err := NewMontage(4, []string{"C3", "C4", "P3", "P4"}, "EEG")
	require.NoError(t, err)

	m2, err := m.ApplyNewLabels("O1,O2,O3,O4")
	require.NoError(t, err)
	assert.Equal(t, []string{"O1", "O2", "O3", "O4"}, m2.Labels())
	assert.Equal(t, []string{"C3", "C4", "P3", "P4"}, m.Labels(), "receiver must be unchanged")

	m3, err := m.ApplyNewLabels(" Fz, Cz ,Pz,Oz")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fz", "Cz", "Pz", "Oz"}, m3.Labels())

	for _, bad := range []string{"O1,O2", "", "a,b,c,d,e", "A,,B,C", "A, ,B,C", ",,,"} {
		same, err := m.ApplyNewLabels(bad)
		if !errors.Is(err, ErrMontageSizeMismatch) {
			t.Errorf("ApplyNewLabels(%q) error = %v, want ErrMontageSizeMismatch", bad, err)
		}
		assert.Same(t, m, same)
		assert.Equal(t, []string{"C3", "C4", "P3", "P4"}, m.Labels())
	}
}
