package assets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveVariants(t *testing.T) {
	l := NewLocator("content", "us-west-1")

	tests := []struct {
		name    string
		variant SizeVariant
		want    string
	}{
		{"small", SizeSmall, "https://content.s3.us-west-1.amazonaws.com/resized-50w50h-abc123"},
		{"medium", SizeMedium, "https://content.s3.us-west-1.amazonaws.com/resized-300w450h-abc123"},
		{"large", SizeLarge, "https://content.s3.us-west-1.amazonaws.com/resized-400w225h-abc123"},
		{"explore", SizeExplore, "https://content.s3.us-west-1.amazonaws.com/resized-400w600h-abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Resolve("abc123", tt.variant))
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	l := NewLocator("content", "us-west-1")

	first := l.Resolve("key-1", SizeMedium)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, l.Resolve("key-1", SizeMedium))
	}
}

func TestResolveVariantsAreDistinct(t *testing.T) {
	l := NewLocator("content", "us-west-1")

	seen := map[string]SizeVariant{}
	for _, v := range []SizeVariant{SizeSmall, SizeMedium, SizeLarge, SizeExplore} {
		url := l.Resolve("abc123", v)
		if prev, dup := seen[url]; dup {
			t.Fatalf("variants %s and %s resolved to the same URL %s", prev, v, url)
		}
		seen[url] = v
	}
}

func TestResolveUnknownVariantFallsBackToLarge(t *testing.T) {
	l := NewLocator("content", "us-west-1")

	assert.Equal(t, l.Resolve("abc123", SizeLarge), l.Resolve("abc123", SizeVariant("huge")))
	assert.Equal(t, l.Resolve("abc123", SizeLarge), l.Resolve("abc123", ""))
}

func TestResolveEmbedsKeyAsSuffix(t *testing.T) {
	l := NewLocator("content", "us-west-1")

	assert.True(t, strings.HasSuffix(l.Resolve("abc123", SizeSmall), "resized-50w50h-abc123"))
	assert.True(t, strings.HasSuffix(l.Resolve("abc123", SizeExplore), "resized-400w600h-abc123"))
}
