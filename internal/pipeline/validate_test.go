package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	req, err := Validate(Request{Description: "  a todo app \n", ProjectName: " todo_app-2 "}, 0)
	require.NoError(t, err)
	assert.Equal(t, "a todo app", req.Description)
	assert.Equal(t, "todo_app-2", req.ProjectName)

	_, err = Validate(Request{Description: strings.Repeat("é", DefaultMaxDescriptionLength)}, 0)
	assert.NoError(t, err, "limit counts characters, not bytes")

	_, err = Validate(Request{Description: strings.Repeat("x", DefaultMaxDescriptionLength+1)}, 0)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "description", ve.Field)

	_, err = Validate(Request{Description: "x", ProjectName: "-todo"}, 0)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "project_name", ve.Field)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"A simple todo CLI!":                       "a-simple-todo-cli",
		"123 go tool":                              "go-tool",
		"!!!":                                      "project",
		"Build   a REST/JSON api for books, please": "build-a-rest-json-api",
	}
	for in, want := range cases {
		got := Slugify(in)
		assert.Equal(t, want, got, in)
		assert.True(t, ValidProjectName(got), got)
	}
}
