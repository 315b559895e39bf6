package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanCell(t *testing.T) {
	// Banner pads empty cells with non-breaking spaces
	require.Equal(t, "", CleanCell("\u00a0\u00a0"))
	require.Equal(t, "Sean Davis (P)", CleanCell("  Sean  Davis (P)\n"))
	require.Equal(t, "ECS 020; or equivalent", CleanCell("ECS 020;\n   or equivalent"))
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "engineeringcomputerscience", NormalizeName("  Engineering Computer Science "))
	require.Equal(t, "wildlife,fish&conservbiol", NormalizeName("Wildlife, Fish & Conserv Biol"))
}
