package readers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_CanRead(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "policy.pdf", want: true},
		{path: "contract.docx", want: true},
		{path: "notes.odt", want: true},
		{path: "terms.txt", want: true},
		{path: "feed.xml", want: true},
		{path: "/docs/nested/Policy.PDF", want: true},
		{path: "image.png", want: false},
		{path: "archive.zip", want: false},
		{path: "noextension", want: false},
	}

	ex := &DocconvExtractor{}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ex.CanRead(tt.path))
		})
	}
}
