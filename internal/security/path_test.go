package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"absolute path", "/var/lib/wabridge/bridge.db", false},
		{"relative path", "cache/abc.jpg", false},
		{"empty", "", true},
		{"traversal", "../../etc/passwd", true},
		{"embedded traversal", "cache/../../secrets", true},
		{"nul byte", "cache/\x00evil", true},
		{"dot segments that clean away", "cache/./abc.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFilePathWithBase(t *testing.T) {
	base := "/var/cache/wabridge"

	assert.NoError(t, ValidateFilePathWithBase("abc.jpg", base))
	assert.NoError(t, ValidateFilePathWithBase("sub/abc.jpg", base))
	assert.Error(t, ValidateFilePathWithBase("../outside.jpg", base))
	assert.Error(t, ValidateFilePathWithBase("", base))
}
