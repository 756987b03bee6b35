package cli

import (
	"bufio"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	builtindocs "github.com/cohort-cli/cohort/docs"
	"github.com/cohort-cli/cohort/internal/ui"
)

var (
	docsSearchLimit   int
	docsSearchSection string
)

// docsTopic is one renderable page of the bundled documentation. Path
// starts as the index's file name relative to the section directory and
// is rewritten to the repo-relative form at load time.
type docsTopic struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Path  string `yaml:"path" json:"path"`

	section string
	fsPath  string
}

// docsSection groups topics under one heading. Sections and topics keep
// the order the index declares.
type docsSection struct {
	ID     string      `yaml:"id"`
	Title  string      `yaml:"title"`
	Topics []docsTopic `yaml:"topics"`
}

type docsTree struct {
	Sections []docsSection `yaml:"sections"`
}

// docsMatch is one search hit: a page line containing the query.
type docsMatch struct {
	Section string `json:"section"`
	Topic   string `json:"topic"`
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Text    string `json:"text"`
}

var docsCmd = &cobra.Command{
	Use:   "docs [section] [topic]",
	Short: "Browse the bundled documentation",
	Long: `Browse the guides, references, and design notes bundled into the binary.

With no arguments the sections are listed; name a section to list its
topics, and a topic to read it. Topics render through the terminal
Markdown viewer when stdout is a terminal.

Examples:
  cohort docs
  cohort docs guide
  cohort docs guide getting-started
  cohort docs search "age range"
  cohort docs search params --section reference`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := loadDocsTree(builtindocs.FS)
		if err != nil {
			return handleError(ErrInternal, err, "The docs bundle ships inside the binary; rebuild cohort")
		}

		if len(args) == 0 {
			return printDocsSections(tree)
		}
		section, ok := tree.section(args[0])
		if !ok {
			return docsUnknownSection(tree, args[0])
		}
		if len(args) == 1 {
			return printDocsTopics(section)
		}
		topic, ok := section.topic(args[1])
		if !ok {
			return docsUnknownTopic(section, args[1])
		}
		return printDocsTopic(topic)
	},
}

var docsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the bundled documentation",
	Long: `Search every bundled Markdown page for a string, case-insensitively.

Examples:
  cohort docs search enwiden
  cohort docs search "composite id" --section design
  cohort docs search filter --limit 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return handleErrorMsg(ErrMissingArgument, "specify a search query", "Usage: cohort docs search <query>")
		}
		if docsSearchLimit < 1 {
			return handleErrorMsg(ErrInvalidInput, "--limit must be at least 1", "")
		}
		tree, err := loadDocsTree(builtindocs.FS)
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		matches, err := tree.search(builtindocs.FS, query, docsSearchSection, docsSearchLimit)
		if err != nil {
			return handleErrorMsg(ErrInvalidInput, err.Error(), "Run 'cohort docs' to list sections")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"query":   query,
				"matches": matches,
			}, &Meta{Count: len(matches)})
			return nil
		}
		if len(matches) == 0 {
			fmt.Printf("No docs match %q.\n", query)
			return nil
		}
		for _, m := range matches {
			ref := fmt.Sprintf("%s/%s:%d", m.Section, m.Topic, m.Line)
			fmt.Printf("%s  %s\n", ui.Muted.Render(ref), m.Text)
		}
		return nil
	},
}

func printDocsSections(tree *docsTree) error {
	if isJSONOutput() {
		views := make([]map[string]interface{}, 0, len(tree.Sections))
		for _, s := range tree.Sections {
			views = append(views, map[string]interface{}{
				"id":     s.ID,
				"title":  s.Title,
				"topics": len(s.Topics),
			})
		}
		outputSuccess(map[string]interface{}{"sections": views}, &Meta{Count: len(tree.Sections)})
		return nil
	}

	fmt.Println(ui.Header("Documentation"))
	for _, s := range tree.Sections {
		count := ui.Count(len(s.Topics), "topic", "topics")
		fmt.Printf("  %-12s %s %s\n", s.ID, s.Title, ui.Hint(count))
	}
	fmt.Println()
	fmt.Println(ui.Hint("Open a page with 'cohort docs <section> <topic>'."))
	fmt.Println(ui.Hint("Search every page with 'cohort docs search <query>'."))
	return nil
}

func printDocsTopics(s *docsSection) error {
	if isJSONOutput() {
		outputSuccess(map[string]interface{}{
			"section": s.ID,
			"title":   s.Title,
			"topics":  s.Topics,
		}, &Meta{Count: len(s.Topics)})
		return nil
	}

	fmt.Println(ui.Header(s.Title))
	for _, t := range s.Topics {
		open := fmt.Sprintf("cohort docs %s %s", s.ID, t.ID)
		fmt.Printf("  %-44s %s\n", open, t.Title)
	}
	return nil
}

func printDocsTopic(t *docsTopic) error {
	content, err := fs.ReadFile(builtindocs.FS, t.fsPath)
	if err != nil {
		return handleError(ErrFileReadError, err, "")
	}

	if isJSONOutput() {
		outputSuccess(map[string]interface{}{
			"section": t.section,
			"topic":   t.ID,
			"title":   t.Title,
			"path":    t.Path,
			"content": string(content),
		}, nil)
		return nil
	}

	text := string(content)
	display := ui.NewDisplayContext()
	if display.IsTTY {
		if rendered, err := ui.RenderMarkdown(text, display.TermWidth); err == nil {
			text = rendered
		}
	}
	fmt.Print(text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Println()
	}
	return nil
}

func docsUnknownSection(tree *docsTree, raw string) error {
	if isTopLevelCommand(raw) {
		return handleErrorMsg(ErrInvalidInput,
			fmt.Sprintf("%q is a command, not a docs section", raw),
			fmt.Sprintf("Use 'cohort help %s' for command usage", raw))
	}
	ids := make([]string, 0, len(tree.Sections))
	for _, s := range tree.Sections {
		ids = append(ids, s.ID)
	}
	return handleErrorMsg(ErrInvalidInput,
		fmt.Sprintf("unknown docs section %q", raw),
		"Sections: "+strings.Join(ids, ", "))
}

func docsUnknownTopic(s *docsSection, raw string) error {
	ids := make([]string, 0, len(s.Topics))
	for _, t := range s.Topics {
		ids = append(ids, t.ID)
	}
	return handleErrorMsg(ErrInvalidInput,
		fmt.Sprintf("no topic %q in section %q", raw, s.ID),
		fmt.Sprintf("Topics in %s: %s", s.ID, strings.Join(ids, ", ")))
}

// isTopLevelCommand reports whether name is a registered subcommand, so
// 'cohort docs count' can point at 'cohort help count' instead of
// failing as an unknown section.
func isTopLevelCommand(name string) bool {
	for _, c := range rootCmd.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return true
		}
	}
	return false
}

// loadDocsTree reads and validates index.yaml from the docs filesystem.
// The index is the source of truth for ordering; a page it does not
// declare is unreachable.
func loadDocsTree(fsys fs.FS) (*docsTree, error) {
	raw, err := fs.ReadFile(fsys, "index.yaml")
	if err != nil {
		return nil, fmt.Errorf("read docs index: %w", err)
	}
	var tree docsTree
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse docs index: %w", err)
	}
	if len(tree.Sections) == 0 {
		return nil, fmt.Errorf("docs index declares no sections")
	}

	sectionIDs := make(map[string]bool, len(tree.Sections))
	for si := range tree.Sections {
		s := &tree.Sections[si]
		if s.ID == "" || docsSlug(s.ID) != s.ID {
			return nil, fmt.Errorf("docs index: section id %q is not a slug", s.ID)
		}
		if sectionIDs[s.ID] {
			return nil, fmt.Errorf("docs index: section %q declared twice", s.ID)
		}
		sectionIDs[s.ID] = true
		if s.Title == "" {
			s.Title = docsSlugTitle(s.ID)
		}
		if len(s.Topics) == 0 {
			return nil, fmt.Errorf("docs index: section %q has no topics", s.ID)
		}

		topicIDs := make(map[string]bool, len(s.Topics))
		for ti := range s.Topics {
			t := &s.Topics[ti]
			if t.ID == "" || docsSlug(t.ID) != t.ID {
				return nil, fmt.Errorf("docs index: topic id %q in section %q is not a slug", t.ID, s.ID)
			}
			if topicIDs[t.ID] {
				return nil, fmt.Errorf("docs index: topic %q declared twice in section %q", t.ID, s.ID)
			}
			topicIDs[t.ID] = true

			rel := path.Clean(strings.TrimSpace(t.Path))
			if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, "/") || path.Ext(rel) != ".md" {
				return nil, fmt.Errorf("docs index: topic %s/%s has invalid path %q", s.ID, t.ID, t.Path)
			}
			t.section = s.ID
			t.fsPath = path.Join(s.ID, rel)
			t.Path = path.Join("docs", t.fsPath)

			title, err := docsPageTitle(fsys, t.fsPath)
			if err != nil {
				return nil, fmt.Errorf("docs index: topic %s/%s points at a missing page: %w", s.ID, t.ID, err)
			}
			if t.Title == "" {
				t.Title = title
			}
			if t.Title == "" {
				t.Title = docsSlugTitle(t.ID)
			}
		}
	}
	return &tree, nil
}

// section finds a section by id, forgiving case and separator drift.
func (d *docsTree) section(raw string) (*docsSection, bool) {
	want := docsSlug(raw)
	for i := range d.Sections {
		if d.Sections[i].ID == want {
			return &d.Sections[i], true
		}
	}
	return nil, false
}

// topic finds a topic by id. A trailing .md is tolerated so file names
// paste straight in.
func (s *docsSection) topic(raw string) (*docsTopic, bool) {
	want := docsSlug(strings.TrimSuffix(strings.TrimSpace(raw), ".md"))
	for i := range s.Topics {
		if s.Topics[i].ID == want {
			return &s.Topics[i], true
		}
	}
	return nil, false
}

// search scans pages in index order for a case-insensitive substring,
// one match per line, capped at limit.
func (d *docsTree) search(fsys fs.FS, query, sectionID string, limit int) ([]docsMatch, error) {
	sections := d.Sections
	if strings.TrimSpace(sectionID) != "" {
		s, ok := d.section(sectionID)
		if !ok {
			return nil, fmt.Errorf("unknown docs section %q", sectionID)
		}
		sections = []docsSection{*s}
	}

	needle := strings.ToLower(query)
	var matches []docsMatch
	for _, s := range sections {
		for _, t := range s.Topics {
			content, err := fs.ReadFile(fsys, t.fsPath)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", t.Path, err)
			}
			for i, line := range strings.Split(string(content), "\n") {
				if !strings.Contains(strings.ToLower(line), needle) {
					continue
				}
				matches = append(matches, docsMatch{
					Section: s.ID,
					Topic:   t.ID,
					Path:    t.Path,
					Line:    i + 1,
					Text:    docsSnippet(line, needle),
				})
				if len(matches) >= limit {
					return matches, nil
				}
			}
		}
	}
	return matches, nil
}

// docsSnippet trims a matched line to a readable width, keeping the
// match visible.
func docsSnippet(line, needle string) string {
	const width = 160
	s := strings.TrimSpace(line)
	if len(s) <= width {
		return s
	}
	at := strings.Index(strings.ToLower(s), needle)
	if at < 0 {
		at = 0
	}
	start := at - width/3
	if start < 0 {
		start = 0
	}
	end := start + width
	if end > len(s) {
		end = len(s)
		start = end - width
	}
	out := s[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(s) {
		out += "..."
	}
	return out
}

// docsPageTitle returns the first level-one heading of a page, or "".
func docsPageTitle(fsys fs.FS, name string) (string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if after, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(after), nil
		}
	}
	return "", sc.Err()
}

// docsSlug normalizes a section or topic name: lower case, spaces and
// underscores become hyphens, runs collapse.
func docsSlug(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	hyphen := false
	for _, r := range s {
		if r == ' ' || r == '_' || r == '-' {
			if !hyphen {
				b.WriteByte('-')
				hyphen = true
			}
			continue
		}
		b.WriteRune(r)
		hyphen = false
	}
	return strings.Trim(b.String(), "-")
}

// docsSlugTitle derives a display title from a slug.
func docsSlugTitle(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func init() {
	docsSearchCmd.Flags().IntVar(&docsSearchLimit, "limit", 20, "Maximum matches to report")
	docsSearchCmd.Flags().StringVar(&docsSearchSection, "section", "", "Search a single section")
	docsCmd.AddCommand(docsSearchCmd)
	rootCmd.AddCommand(docsCmd)
}
