package ui

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"edupulse/domain/analytics"
)

// RenderReportMarkdown builds a human-readable summary of one analysis run.
func RenderReportMarkdown(result *analytics.AnalysisResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Student Analytics Report %s\n\n", result.ID)
	fmt.Fprintf(&b, "Generated %s.\n\n", result.CreatedAt)

	b.WriteString("## Risk Predictions\n\n")
	b.WriteString("| Student | Risk | Confidence |\n|---|---|---|\n")
	for _, p := range result.RiskPredictions {
		fmt.Fprintf(&b, "| %s | %.2f | %.2f |\n", p.StudentID, p.RiskScore, p.Confidence)
	}

	b.WriteString("\n## Clusters\n\n")
	for _, cl := range result.Clusters {
		fmt.Fprintf(&b, "### Cluster %d (%d students)\n\n", cl.ClusterID, cl.Size)
		for _, rec := range cl.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Patterns\n\n")
	if len(result.Patterns) == 0 {
		b.WriteString("No notable patterns detected.\n")
	}
	for _, p := range result.Patterns {
		fmt.Fprintf(&b, "- **%s** (confidence %.2f): %s\n", p.Kind, p.Confidence, p.Description)
	}

	b.WriteString("\n## Recommendations\n\n")
	for _, r := range result.Recommendations {
		fmt.Fprintf(&b, "- %s: %s priority %s. %s\n", r.StudentID, r.Intervention, r.Priority, r.Explanation)
	}

	if len(result.Skipped) > 0 {
		b.WriteString("\n## Skipped Records\n\n")
		for _, s := range result.Skipped {
			fmt.Fprintf(&b, "- %s: %s\n", s.StudentID, s.Reason)
		}
	}

	return b.String()
}

// RenderReportHTML renders the markdown report as HTML for the dashboard.
func RenderReportHTML(result *analytics.AnalysisResult) []byte {
	md := RenderReportMarkdown(result)
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(md), p, renderer)
}
