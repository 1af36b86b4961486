package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapRunsOnToImage(t *testing.T) {
	cases := map[string]string{
		"ubuntu-latest": "ubuntu:22.04",
		"ubuntu-22.04":  "ubuntu:22.04",
		"ubuntu-20.04":  "ubuntu:20.04",
		"ubuntu-18.04":  "ubuntu:latest",
		"debian-latest": "debian:latest",
		"alpine-latest": "alpine:latest",
		"macos-latest":  defaultImage,
		"":              defaultImage,
	}
	for runsOn, want := range cases {
		assert.Equal(t, want, mapRunsOnToImage(runsOn), "runsOn=%s", runsOn)
	}
}

func TestItoa(t *testing.T) {
	assert.Equal(t, "0", itoa(0))
	assert.Equal(t, "1", itoa(1))
	assert.Equal(t, "127", itoa(127))
	assert.Equal(t, "-1", itoa(-1))
}
