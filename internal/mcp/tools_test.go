package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcode/semcode-mcp/internal/search"
)

func TestSearchInput_ToRequest_UseRerankingOmitted(t *testing.T) {
	req := SearchInput{Query: "x"}.toRequest()
	assert.False(t, req.UseRerankingSet)
}

func TestSearchInput_ToRequest_UseRerankingExplicitFalse(t *testing.T) {
	f := false
	req := SearchInput{Query: "x", UseReranking: &f}.toRequest()
	assert.True(t, req.UseRerankingSet)
	assert.False(t, req.UseReranking)
}

func TestToOutput_OmitsEmptyNameAndSignature(t *testing.T) {
	out := toOutput("q", []search.Result{
		{FilePath: "a.go", Content: "x"},
	})
	assert.Nil(t, out.Results[0].Name)
	assert.Nil(t, out.Results[0].Signature)
	assert.Equal(t, 1, out.TotalResults)
	assert.Equal(t, "q", out.Query)
}

func TestToOutput_IncludesNameAndSignatureWhenPresent(t *testing.T) {
	out := toOutput("q", []search.Result{
		{FilePath: "a.go", Name: "Foo", Signature: "func Foo()"},
	})
	require.NotNil(t, out.Results[0].Name)
	require.NotNil(t, out.Results[0].Signature)
	assert.Equal(t, "Foo", *out.Results[0].Name)
	assert.Equal(t, "func Foo()", *out.Results[0].Signature)
}
