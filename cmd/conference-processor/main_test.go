package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunReturnsConfigError(t *testing.T) {
	tests := map[string]struct {
		env, value string
	}{
		"backend": {env: "CONFERENCES_BACKEND", value: "pickle"},
		"folder":  {env: "CONFERENCES_FOLDER", value: "a/b"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)

			assert.ErrorContains(t, run(), "load config")
		})
	}
}
