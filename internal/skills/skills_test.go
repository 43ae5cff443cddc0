package skills

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "Aliases map to canonical names",
			text: "Built services in Golang on K8s backed by Postgres.",
			want: []string{"go", "kubernetes", "postgresql"},
		},
		{
			name: "Symbols survive tokenization",
			text: "Languages: C++, C#, Node.js",
			want: []string{"c#", "c++", "node.js"},
		},
		{
			name: "Multi-word phrases",
			text: "Applied machine learning and natural language processing at scale.",
			want: []string{"machine learning", "nlp"},
		},
		{
			name: "Phrase followed by punctuation",
			text: "Experience with Ruby on Rails.",
			want: []string{"ruby"},
		},
		{
			name: "Compound tokens",
			text: "Go/Python engineer, docker-based deployments, CI/CD",
			want: []string{"ci/cd", "docker", "go", "python"},
		},
		{
			name: "Duplicates collapse",
			text: "golang go GO Golang",
			want: []string{"go"},
		},
		{
			name: "No skills",
			text: "I enjoy hiking and cooking.",
			want: []string{},
		},
		{
			name: "Empty text",
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Golang":           "go",
		" k8s ":            "kubernetes",
		"Machine Learning": "machine learning",
		"ML":               "machine learning",
		"Haskell":          "haskell",
		"":                 "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractorExtraTaxonomy(t *testing.T) {
	e := NewExtractor(map[string][]string{
		"haskell": {"ghc"},
		"go":      {"go-lang"},
	})

	got := e.Extract("Functional work in GHC and some go-lang")
	want := []string{"go", "haskell"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}

	// defaults are still present
	if n := e.Normalize("golang"); n != "go" {
		t.Errorf("Normalize(golang) = %q, want go", n)
	}
}

func TestMatch(t *testing.T) {
	e := NewExtractor(nil)
	res := e.Match(
		[]string{"Golang", "Docker", "SQL"},
		[]string{"go", "Kubernetes", "sql"},
		[]string{"docker", "terraform"},
	)

	if !reflect.DeepEqual(res.MatchedRequired, []string{"go", "sql"}) {
		t.Errorf("MatchedRequired = %v", res.MatchedRequired)
	}
	if !reflect.DeepEqual(res.Missing, []string{"kubernetes"}) {
		t.Errorf("Missing = %v", res.Missing)
	}
	if !reflect.DeepEqual(res.MatchedPreferred, []string{"docker"}) {
		t.Errorf("MatchedPreferred = %v", res.MatchedPreferred)
	}
	if !reflect.DeepEqual(res.Matched(), []string{"go", "sql", "docker"}) {
		t.Errorf("Matched() = %v", res.Matched())
	}
}

func TestMatchSkillBothRequiredAndPreferred(t *testing.T) {
	e := NewExtractor(nil)
	res := e.Match(
		[]string{"go", "docker"},
		[]string{"Go", "kubernetes"},
		[]string{"golang", "docker"},
	)

	if !reflect.DeepEqual(res.Preferred, []string{"docker"}) {
		t.Errorf("Preferred = %v", res.Preferred)
	}
	if !reflect.DeepEqual(res.Matched(), []string{"go", "docker"}) {
		t.Errorf("Matched() = %v", res.Matched())
	}

	res = e.Match([]string{"go"}, []string{"go"}, []string{"golang"})
	if len(res.Preferred) != 0 || len(res.MatchedPreferred) != 0 {
		t.Errorf("preferred duplicate of a required skill kept: %+v", res)
	}
}

func TestNormalizeAllDropsBlanks(t *testing.T) {
	e := NewExtractor(nil)
	got := e.NormalizeAll([]string{"Go", "", "  ", "golang", "Rust"})
	want := []string{"go", "rust"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeAll() = %v, want %v", got, want)
	}
}
