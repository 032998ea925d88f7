package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facelink/pkg/face"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestUnitsJSON(t *testing.T) {
	out, err := execute(t, "", "units", "--json")
	require.NoError(t, err)

	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, face.Names(), names)
}

func TestDecomposeFromStdin(t *testing.T) {
	in := "1,0,0,0\n0,1,0,0\n0,0,1,0\n0.1,0.2,-0.5,1\n"
	out, err := execute(t, in, "decompose", "--json")
	require.NoError(t, err)

	var got face.HeadTransform
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.InDelta(t, 0, got.Pitch, 1e-9)
	assert.InDelta(t, 0, got.Yaw, 1e-9)
	assert.InDelta(t, 0, got.Roll, 1e-9)
	assert.InDelta(t, 0.1, got.PositionX, 1e-9)
	assert.InDelta(t, 0.2, got.PositionY, 1e-9)
	assert.InDelta(t, -0.5, got.PositionZ, 1e-9)
	assert.Nil(t, got.Matrix)
}

func TestDecomposeRejectsShortMatrix(t *testing.T) {
	_, err := execute(t, "", "decompose", "1", "0", "0")
	require.Error(t, err)
	assert.ErrorIs(t, err, face.ErrInvalidInput)
}

func TestParseMatrix(t *testing.T) {
	m, err := parseMatrix([]string{"1,2", "3", " 4 ,5"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, m)

	_, err = parseMatrix([]string{"1", "x"})
	assert.ErrorContains(t, err, "matrix element 1")
}
