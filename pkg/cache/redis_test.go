package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhotoAnalysisCacheKey_StableAndBounded(t *testing.T) {
	url := "https://storage.example.com/fotos/loja-12/entrada.jpg?X-Amz-Signature=abcdef"

	key1 := PhotoAnalysisCacheKey(url)
	key2 := PhotoAnalysisCacheKey(url)

	assert.Equal(t, key1, key2)
	assert.True(t, strings.HasPrefix(key1, "photo:analysis:"))
	// sha256 hex digest keeps the key length fixed regardless of URL size
	assert.Len(t, key1, len("photo:analysis:")+64)
}

func TestPhotoAnalysisCacheKey_DistinctURLs(t *testing.T) {
	a := PhotoAnalysisCacheKey("https://example.com/a.jpg")
	b := PhotoAnalysisCacheKey("https://example.com/b.jpg")
	assert.NotEqual(t, a, b)
}

func TestSugestoesCacheKey(t *testing.T) {
	assert.Equal(t, "sugestoes:relatorio:rel-42", SugestoesCacheKey("rel-42"))
}
