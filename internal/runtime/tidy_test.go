package runtime_test

import (
	"testing"

	"github.com/aretw0/thicket/internal/runtime"
	"github.com/stretchr/testify/assert"
)

func TestTidy(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Clean Text", "a red hat", "a red hat"},
		{"Blank Runs", "a   red \t hat", "a red hat"},
		{"Empty Slots", "photo, , , red", "photo, red"},
		{"Space Before Comma", "photo , red ,hat", "photo, red,hat"},
		{"Leading And Trailing Commas", ", red hat ,", "red hat"},
		{"Multiline", "  first,  ,second \n, third,", "first,second\nthird"},
		{"Only Separators", " , , ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runtime.Tidy(tt.in))
		})
	}
}
