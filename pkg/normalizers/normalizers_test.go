package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"O'Brien,  Patrick ", "obrien patrick"},
		{"obrien patrick", "obrien patrick"},
		{"  Ada   LOVELACE  ", "ada lovelace"},
		{"Jean-Luc", "jeanluc"},
		{"", ""},
		{"...", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", NormalizeAddress(" 1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa "))
	assert.Equal(t, "MiXeDcAsE", NormalizeAddress("MiXeDcAsE"), "case is significant for addresses")
}
