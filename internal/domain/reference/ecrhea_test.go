package reference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
)

func TestLoadECRheaTable(t *testing.T) {
	src := strings.Join([]string{
		"EC\tRHEA",
		"1.1.1.1\t10036",
		"1.1.1.1\t10040",
		"1.1.1.1\t9996",
		"3.5.1.50\tRHEA:10000",
		"2.7.1.1\t10001\tUN",
	}, "\n")

	table, err := LoadECRheaTable(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, reaction.Found("1.1.1.1"), table.ECForRhea("10036"))
	assert.Equal(t, reaction.Found("3.5.1.50"), table.ECForRhea("10000"))
	assert.Equal(t, reaction.Found("3.5.1.50"), table.ECForRhea("RHEA:10000"))
	assert.Equal(t, reaction.Found("2.7.1.1"), table.ECForRhea("10001"))
	assert.Equal(t, reaction.NotFound(), table.ECForRhea("99999"))
	assert.Equal(t, []string{"9996", "10036", "10040"}, table.RheaForEC("1.1.1.1"))
	assert.Empty(t, table.RheaForEC("9.9.9.9"))
	assert.Equal(t, 5, table.Len())
	assert.Equal(t, 1, table.Stats().Skipped)
}

func TestECRheaTable_ExactMatchNotPositional(t *testing.T) {
	table := NewECRheaTable(map[string]string{"100": "1.1.1.1", "1000": "2.2.2.2"})
	assert.Equal(t, reaction.Found("1.1.1.1"), table.ECForRhea("100"))
	assert.Equal(t, reaction.Found("2.2.2.2"), table.ECForRhea("1000"))
	assert.False(t, table.ECForRhea("10").IsFound())
}

func TestECRheaTable_ReassignedRheaMovesBetweenECs(t *testing.T) {
	src := "1.1.1.1\t10036\n1.1.1.2\t10036\n"
	table, err := LoadECRheaTable(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, reaction.Found("1.1.1.2"), table.ECForRhea("10036"))
	assert.Empty(t, table.RheaForEC("1.1.1.1"))
	assert.Equal(t, []string{"10036"}, table.RheaForEC("1.1.1.2"))
	assert.Equal(t, 1, table.Stats().Overwritten)
}

func TestRheaForEC_ReturnsCopy(t *testing.T) {
	table := NewECRheaTable(map[string]string{"1": "1.1.1.1"})
	ids := table.RheaForEC("1.1.1.1")
	ids[0] = "mutated"
	assert.Equal(t, []string{"1"}, table.RheaForEC("1.1.1.1"))
}
