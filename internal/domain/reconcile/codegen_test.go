package reconcile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalCodeBase(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spaces stripped before truncation", "Test Bank", "TESTB"},
		{"short name", "Kasa", "KASA"},
		{"turkish dotted i", "iş bankası", "İŞBAN"},
		{"latin i takes the turkish capital", "Main", "MAİN"},
		{"only spaces", "   ", "JRNL"},
		{"empty", "", "JRNL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JournalCodeBase(tt.in))
		})
	}
}

func TestGenerateJournalCode(t *testing.T) {
	t.Run("free base", func(t *testing.T) {
		code, attempts := GenerateJournalCode("Test Bank", CodeSet([]string{"CASH"}))
		assert.Equal(t, "TESTB", code)
		assert.Equal(t, 1, attempts)
	})

	t.Run("suffix on collision", func(t *testing.T) {
		code, attempts := GenerateJournalCode("Test Bank", CodeSet([]string{"TESTB", "TEST1"}))
		assert.Equal(t, "TEST2", code)
		assert.Equal(t, 3, attempts)
	})

	t.Run("base equal to a suffixed candidate is not retried", func(t *testing.T) {
		code, _ := GenerateJournalCode("Test1", CodeSet([]string{"TEST1"}))
		assert.Equal(t, "TEST2", code)
	})

	t.Run("terminates within N+1 attempts", func(t *testing.T) {
		for n := 0; n <= 50; n++ {
			codes := []string{"TESTB"}
			for i := 1; i < n; i++ {
				codes = append(codes, fmt.Sprintf("TEST%d", i))
			}
			existing := CodeSet(codes)

			code, attempts := GenerateJournalCode("Test Bank", existing)
			require.NotEmpty(t, code)
			assert.LessOrEqual(t, attempts, len(existing)+1)
			_, taken := existing[code]
			assert.False(t, taken, "code %s must be free", code)
		}
	})

	t.Run("unrelated codes do not matter", func(t *testing.T) {
		existing := CodeSet([]string{"A", "B", "C", "TESTB"})
		code, attempts := GenerateJournalCode("Test Bank", existing)
		assert.Equal(t, "TEST1", code)
		assert.Equal(t, 2, attempts)
	})
}
