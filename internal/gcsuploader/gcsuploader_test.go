package gcsuploader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := ParseGCSURI("gs://ledger-exports/2025/01/ledger.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "ledger-exports", bucket)
	assert.Equal(t, "2025/01/ledger.xlsx", object)
	assert.Equal(t, "gs://ledger-exports/2025/01/ledger.xlsx", BuildGCSURI(bucket, object))

	for _, bad := range []string{"", "s3://bucket/key", "gs://bucket", "gs://bucket/", "gs:///key"} {
		_, _, err := ParseGCSURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := map[string]string{
		"gs://bucket/folder/file.csv": "file.csv",
		"gs://bucket/file.csv":        "file.csv",
		"gs://bucket":                 "bucket",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractFilenameFromGCSURI(in), in)
	}
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "text/csv", contentTypeFor("transactions.CSV"))
	assert.Equal(t, XLSXContentType, contentTypeFor("/tmp/ledger.xlsx"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("notes"))
	assert.True(t, IsGCSURI("gs://a/b"))
	assert.False(t, IsGCSURI("/tmp/a.csv"))
}
