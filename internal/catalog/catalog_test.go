package catalog

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSortVideos(t *testing.T) {
	v := []Video{{Season: 2, Episode: 1}, {Season: 1, Episode: 3}, {Season: 1, Episode: 1}}
	SortVideos(v)
	if v[0].Season != 1 || v[0].Episode != 1 || v[1].Episode != 3 || v[2].Season != 2 {
		t.Errorf("order = %+v", v)
	}
}

func TestSortStreams_bestFirstStable(t *testing.T) {
	s := []Stream{{Name: "a", Height: 720}, {Name: "b", Height: 2160}, {Name: "c", Height: 720}, {Name: "d", Height: 1080}}
	SortStreams(s)
	got := s[0].Name + s[1].Name + s[2].Name + s[3].Name
	if got != "bdac" {
		t.Errorf("order = %s, want bdac", got)
	}
}

func TestCategorized(t *testing.T) {
	var c Categorized
	c.Add(MetaPreview{ID: "1", Type: TypeMovie})
	c.Add(MetaPreview{ID: "2", Type: TypeSeries})
	if len(c.ForType(TypeMovie)) != 1 || len(c.ForType(TypeSeries)) != 1 {
		t.Errorf("categorized = %+v", c)
	}
	if c.ForType("tv") != nil {
		t.Error("unknown type should be nil")
	}
}

func TestMetaPreview_nullRating(t *testing.T) {
	b, err := json.Marshal(MetaPreview{ID: "x", Type: TypeMovie, Name: "X", IMDBRating: StringPtr("")})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"imdbRating":null`) {
		t.Errorf("json = %s", b)
	}
	b, _ = json.Marshal(MetaPreview{IMDBRating: StringPtr("7.1")})
	if !strings.Contains(string(b), `"imdbRating":"7.1"`) {
		t.Errorf("json = %s", b)
	}
}

func TestStream_heightNotSerialized(t *testing.T) {
	b, _ := json.Marshal(Stream{Name: "n", Height: 1080})
	if strings.Contains(string(b), "1080") || strings.Contains(string(b), "Height") {
		t.Errorf("json = %s", b)
	}
}
