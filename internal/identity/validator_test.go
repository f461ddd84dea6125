package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	res := Validate(sampleDoc, doc)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}

func TestValidateRejectsMissingMandatoryBlock(t *testing.T) {
	content := "@META{version:1|sessions:1}\n@KERN{1:axiom}\n@SELF{name:x}\n@STATE{focus:x}\n@BONDS{user:x}\n"
	doc, err := Parse([]byte(content))
	require.NoError(t, err)
	res := Validate(content, doc)
	assert.False(t, res.Valid)
	assert.Contains(t, strings.Join(res.Errors, " "), "MEM")
}

func TestValidateRejectsMissingBondsAlias(t *testing.T) {
	content := "@META{version:1|sessions:1}\n@KERN{1:axiom}\n@SELF{name:x}\n@STATE{focus:x}\n@MEM{[core|c:1|r:1] m}\n"
	doc, err := Parse([]byte(content))
	require.NoError(t, err)
	res := Validate(content, doc)
	assert.False(t, res.Valid)
}

func TestValidateRejectsOversizeDocument(t *testing.T) {
	big := strings.Repeat("x", MaxSizeBytes+100)
	content := "@META{version:1|sessions:1}\n@KERN{1:axiom}\n@SELF{name:" + big + "}\n@STATE{focus:x}\n@MEM{[core|c:1|r:1] m}\n@BONDS{user:x}\n"
	doc, err := Parse([]byte(content))
	require.NoError(t, err)
	res := Validate(content, doc)
	assert.False(t, res.Valid)
}

func TestValidateWarnsAboveWarnThreshold(t *testing.T) {
	mid := strings.Repeat("x", WarnSizeBytes)
	content := "@META{version:1|sessions:1}\n@KERN{1:axiom}\n@SELF{name:" + mid + "}\n@STATE{focus:x}\n@MEM{[core|c:1|r:1] m}\n@BONDS{user:x}\n"
	doc, err := Parse([]byte(content))
	require.NoError(t, err)
	res := Validate(content, doc)
	if len(content) <= MaxSizeBytes {
		assert.NotEmpty(t, res.Warnings)
	}
}

func TestValidateRejectsKernWithoutNumberedAxiom(t *testing.T) {
	content := "@META{version:1|sessions:1}\n@KERN{be honest}\n@SELF{name:x}\n@STATE{focus:x}\n@MEM{[core|c:1|r:1] m}\n@BONDS{user:x}\n"
	doc, err := Parse([]byte(content))
	require.NoError(t, err)
	res := Validate(content, doc)
	assert.False(t, res.Valid)
}
