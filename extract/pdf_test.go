package extract

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFTextRejectsNonPDF(t *testing.T) {
	data := []byte("plain text, definitely not a pdf")

	_, _, err := PDFText(bytes.NewReader(data), int64(len(data)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open pdf")
}

func TestPDFTextRejectsTruncatedPDF(t *testing.T) {
	// A valid header with nothing behind it.
	data := []byte("%PDF-1.4\n")

	_, _, err := PDFText(bytes.NewReader(data), int64(len(data)))
	require.Error(t, err)
}
