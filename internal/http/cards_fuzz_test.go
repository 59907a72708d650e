package httpserver

import (
	"net/url"
	"testing"
)

func FuzzBuildCardFilters(f *testing.F) {
	seeds := []string{
		"q=sunset&minInteractions=10&limit=20",
		"minInteractions=abc",
		"limit=200",
		"cursor=bm90LWEtY3Vyc29y",
		"",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		values, err := url.ParseQuery(raw)
		if err != nil {
			return
		}
		_, _ = buildCardFilters(values)
	})
}
