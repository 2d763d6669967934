package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "v1.2.3"
	assert.Equal(t, "kaltransport v1.2.3 (unknown, built unknown)", String("kaltransport"))
}
