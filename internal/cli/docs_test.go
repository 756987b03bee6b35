package cli

import (
	"strings"
	"testing"
	"testing/fstest"

	builtindocs "github.com/cohort-cli/cohort/docs"
)

func docsFixtureFS() fstest.MapFS {
	return fstest.MapFS{
		"index.yaml": &fstest.MapFile{Data: []byte(`sections:
  - id: reference
    title: Reference
    topics:
      - id: filter-syntax
        path: filter_syntax.md
      - id: params-files
        title: Parameter Files
        path: params-files.md
  - id: guide
    topics:
      - id: getting-started
        path: getting-started.md
`)},
		"reference/filter_syntax.md": &fstest.MapFile{Data: []byte(
			"# Filter Syntax\n\nA range filter compiles to BETWEEN.\nA categorical filter compiles to IN.\n")},
		"reference/params-files.md": &fstest.MapFile{Data: []byte(
			"# Params\n\nRange bounds are inclusive.\n")},
		"guide/getting-started.md": &fstest.MapFile{Data: []byte(
			"Plain text without a heading.\n")},
	}
}

func TestLoadDocsTreeOrderAndTitles(t *testing.T) {
	t.Parallel()

	tree, err := loadDocsTree(docsFixtureFS())
	if err != nil {
		t.Fatalf("loadDocsTree: %v", err)
	}

	if len(tree.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(tree.Sections))
	}
	if tree.Sections[0].ID != "reference" || tree.Sections[1].ID != "guide" {
		t.Errorf("section order = [%s %s], want index order [reference guide]",
			tree.Sections[0].ID, tree.Sections[1].ID)
	}
	if got := tree.Sections[1].Title; got != "Guide" {
		t.Errorf("untitled section title = %q, want slug-derived %q", got, "Guide")
	}

	ref := tree.Sections[0]
	if got := ref.Topics[0].Title; got != "Filter Syntax" {
		t.Errorf("heading-derived title = %q, want %q", got, "Filter Syntax")
	}
	if got := ref.Topics[1].Title; got != "Parameter Files" {
		t.Errorf("index title override = %q, want %q", got, "Parameter Files")
	}
	if got := ref.Topics[0].Path; got != "docs/reference/filter_syntax.md" {
		t.Errorf("rewritten path = %q, want %q", got, "docs/reference/filter_syntax.md")
	}
	if got := tree.Sections[1].Topics[0].Title; got != "Getting Started" {
		t.Errorf("headingless page title = %q, want slug-derived %q", got, "Getting Started")
	}
}

func TestLoadDocsTreeEmbedded(t *testing.T) {
	t.Parallel()

	tree, err := loadDocsTree(builtindocs.FS)
	if err != nil {
		t.Fatalf("loadDocsTree(embedded): %v", err)
	}

	var ids []string
	for _, s := range tree.Sections {
		if len(s.Topics) == 0 {
			t.Errorf("embedded section %q has no topics", s.ID)
		}
		ids = append(ids, s.ID)
	}
	if got := strings.Join(ids, " "); got != "guide reference design" {
		t.Fatalf("embedded section order = %q, want %q", got, "guide reference design")
	}

	ref, ok := tree.section("reference")
	if !ok {
		t.Fatal("embedded index has no reference section")
	}
	topic, ok := ref.topic("filter-syntax")
	if !ok {
		t.Fatal("reference section has no filter-syntax topic")
	}
	if topic.Title != "Filter Syntax" {
		t.Errorf("filter-syntax title = %q, want %q", topic.Title, "Filter Syntax")
	}
}

func TestLoadDocsTreeRejects(t *testing.T) {
	t.Parallel()

	index := func(doc string) fstest.MapFS {
		return fstest.MapFS{
			"index.yaml":  &fstest.MapFile{Data: []byte(doc)},
			"guide/a.md":  &fstest.MapFile{Data: []byte("# A\n")},
			"guide/b.md":  &fstest.MapFile{Data: []byte("# B\n")},
			"design/c.md": &fstest.MapFile{Data: []byte("# C\n")},
		}
	}

	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name:    "missing index",
			fsys:    fstest.MapFS{},
			wantErr: "read docs index",
		},
		{
			name:    "no sections",
			fsys:    index("sections: []\n"),
			wantErr: "declares no sections",
		},
		{
			name: "section id not a slug",
			fsys: index(`sections:
  - id: User Guides
    topics:
      - id: a
        path: a.md
`),
			wantErr: "not a slug",
		},
		{
			name: "duplicate section",
			fsys: index(`sections:
  - id: guide
    topics:
      - id: a
        path: a.md
  - id: guide
    topics:
      - id: b
        path: b.md
`),
			wantErr: "declared twice",
		},
		{
			name: "section without topics",
			fsys: index(`sections:
  - id: guide
    topics: []
`),
			wantErr: "has no topics",
		},
		{
			name: "duplicate topic",
			fsys: index(`sections:
  - id: guide
    topics:
      - id: a
        path: a.md
      - id: a
        path: b.md
`),
			wantErr: "declared twice",
		},
		{
			name: "path escapes section",
			fsys: index(`sections:
  - id: guide
    topics:
      - id: c
        path: ../design/c.md
`),
			wantErr: "invalid path",
		},
		{
			name: "path not markdown",
			fsys: index(`sections:
  - id: guide
    topics:
      - id: a
        path: a.txt
`),
			wantErr: "invalid path",
		},
		{
			name: "page missing",
			fsys: index(`sections:
  - id: guide
    topics:
      - id: nope
        path: nope.md
`),
			wantErr: "missing page",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := loadDocsTree(tc.fsys)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("loadDocsTree error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestDocsSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"filter-syntax", "filter-syntax"},
		{"filter_syntax", "filter-syntax"},
		{"Filter Syntax", "filter-syntax"},
		{"  GUIDE  ", "guide"},
		{"weird -- name", "weird-name"},
		{"-leading-and-trailing-", "leading-and-trailing"},
	}
	for _, tc := range tests {
		if got := docsSlug(tc.in); got != tc.want {
			t.Errorf("docsSlug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDocsLookupNormalization(t *testing.T) {
	t.Parallel()

	tree, err := loadDocsTree(docsFixtureFS())
	if err != nil {
		t.Fatalf("loadDocsTree: %v", err)
	}

	section, ok := tree.section("Reference")
	if !ok {
		t.Fatal("section lookup should be case-insensitive")
	}
	if _, ok := tree.section("nope"); ok {
		t.Error("unknown section should not resolve")
	}

	topic, ok := section.topic("filter_syntax.md")
	if !ok {
		t.Fatal("topic lookup should accept underscores and a .md suffix")
	}
	if topic.ID != "filter-syntax" {
		t.Errorf("resolved topic = %q, want filter-syntax", topic.ID)
	}
	if _, ok := section.topic("getting-started"); ok {
		t.Error("topic from another section should not resolve")
	}
}

func TestDocsSearch(t *testing.T) {
	t.Parallel()

	fsys := docsFixtureFS()
	tree, err := loadDocsTree(fsys)
	if err != nil {
		t.Fatalf("loadDocsTree: %v", err)
	}

	matches, err := tree.search(fsys, "COMPILES", "", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	first := matches[0]
	if first.Section != "reference" || first.Topic != "filter-syntax" || first.Line != 3 {
		t.Errorf("unexpected first match: %+v", first)
	}
	if first.Text != "A range filter compiles to BETWEEN." {
		t.Errorf("unexpected snippet: %q", first.Text)
	}

	matches, err = tree.search(fsys, "inclusive", "reference", 10)
	if err != nil {
		t.Fatalf("scoped search: %v", err)
	}
	if len(matches) != 1 || matches[0].Topic != "params-files" {
		t.Errorf("scoped search = %+v, want one params-files match", matches)
	}

	matches, err = tree.search(fsys, "filter", "", 1)
	if err != nil {
		t.Fatalf("limited search: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("limit 1 returned %d matches", len(matches))
	}

	if _, err := tree.search(fsys, "x", "nonexistent", 10); err == nil {
		t.Error("search in unknown section should fail")
	}
}

func TestDocsSnippetLongLine(t *testing.T) {
	t.Parallel()

	line := strings.Repeat("padding ", 30) + "needle here" + strings.Repeat(" more", 20)
	got := docsSnippet(line, "needle")
	if !strings.Contains(got, "needle here") {
		t.Fatalf("snippet lost the match: %q", got)
	}
	if !strings.HasPrefix(got, "...") {
		t.Errorf("snippet should mark a trimmed prefix: %q", got)
	}
	if len(got) > 170 {
		t.Errorf("snippet too long: %d chars", len(got))
	}
}

func TestIsTopLevelCommand(t *testing.T) {
	if !isTopLevelCommand("count") {
		t.Error("count should be recognized as a command")
	}
	if isTopLevelCommand("filter-syntax") {
		t.Error("a docs topic should not be mistaken for a command")
	}
}

func TestPrintDocsSectionsOutput(t *testing.T) {
	tree, err := loadDocsTree(docsFixtureFS())
	if err != nil {
		t.Fatalf("loadDocsTree: %v", err)
	}

	out := captureStdout(t, func() {
		if err := printDocsSections(tree); err != nil {
			t.Errorf("printDocsSections: %v", err)
		}
	})
	for _, want := range []string{"Documentation", "reference", "(2 topics)", "guide", "(1 topic)"} {
		if !strings.Contains(out, want) {
			t.Errorf("sections output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintDocsTopicsOutput(t *testing.T) {
	tree, err := loadDocsTree(docsFixtureFS())
	if err != nil {
		t.Fatalf("loadDocsTree: %v", err)
	}
	section, ok := tree.section("reference")
	if !ok {
		t.Fatal("missing reference section")
	}

	out := captureStdout(t, func() {
		if err := printDocsTopics(section); err != nil {
			t.Errorf("printDocsTopics: %v", err)
		}
	})
	if !strings.Contains(out, "cohort docs reference filter-syntax") {
		t.Errorf("topics output should show the open command:\n%s", out)
	}
	if !strings.Contains(out, "Parameter Files") {
		t.Errorf("topics output should show titles:\n%s", out)
	}
}
