package report

import (
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/scopecrawl/scopecrawl/internal/model"
)

// MarkdownWriter renders a crawl run as a Markdown report for documentation
// and sharing. The nao1215/markdown library gives type-safe tables and
// GitHub-flavored alerts.
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter over the given output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

// RunReport is everything the Markdown report needs: the crawl summary plus
// the classification and discovery data accumulated during the run.
type RunReport struct {
	// SeedURL is the crawl's starting point.
	SeedURL string

	// Summary is the finalized crawl summary.
	Summary *model.CrawlSummary

	// TagCounts maps classification tags to the number of pages carrying
	// them.
	TagCounts map[string]int

	// OnionAddresses are hidden-service addresses discovered in page
	// content, deduplicated.
	OnionAddresses []string
}

// Write renders the run report.
func (w *MarkdownWriter) Write(report *RunReport) error {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeTagSummary(md, report)
	w.writeOnionServices(md, report)

	return md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *RunReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	s := report.Summary
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed URL", "`" + report.SeedURL + "`"},
			{"Pages Crawled", strconv.Itoa(s.TotalPages)},
			{"Successful", strconv.Itoa(s.Successful)},
			{"Failed", strconv.Itoa(s.Failed)},
			{"Max Depth Reached", strconv.Itoa(s.MaxDepthReached)},
			{"Internal Links", strconv.Itoa(s.InternalLinks)},
			{"External Links", strconv.Itoa(s.ExternalLinks)},
			{"Duration", s.Duration.String()},
			{"Termination", string(s.Reason)},
		},
	})
	md.PlainText("")

	if s.Reason == model.TerminationDeadline {
		md.Warning("The crawl hit its deadline; results cover the pages fetched before expiry.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeTagSummary(md *markdown.Markdown, report *RunReport) {
	if len(report.TagCounts) == 0 {
		return
	}

	md.H2("Tag Summary")
	md.PlainText("")

	tags := make([]string, 0, len(report.TagCounts))
	for tag := range report.TagCounts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if report.TagCounts[tags[i]] != report.TagCounts[tags[j]] {
			return report.TagCounts[tags[i]] > report.TagCounts[tags[j]]
		}
		return tags[i] < tags[j]
	})

	rows := make([][]string, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, []string{tag, strconv.Itoa(report.TagCounts[tag])})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Tag", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeOnionServices(md *markdown.Markdown, report *RunReport) {
	if len(report.OnionAddresses) == 0 {
		return
	}

	md.H2("Discovered Onion Services")
	md.PlainText("")

	items := make([]string, 0, len(report.OnionAddresses))
	for _, addr := range report.OnionAddresses {
		items = append(items, "`"+addr+"`")
	}
	md.BulletList(items...)
	md.PlainText("")
}
