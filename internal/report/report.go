// Package report renders a matrix run report as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/buildmatrix/internal/matrix"
	"git.home.luguber.info/inful/buildmatrix/internal/publish"
	"git.home.luguber.info/inful/buildmatrix/internal/scheduler"
)

// Input bundles everything a run report covers. Publish is nil for
// matrix-only runs.
type Input struct {
	Report     *scheduler.Report
	Rejections []matrix.Rejection
	Publish    *publish.Result
	Commit     string
}

// Markdown renders the run report as a Markdown document. Results appear in
// the scheduler's canonical order; diagnostics are included verbatim.
func Markdown(in Input) string {
	var b strings.Builder

	succeeded, failed, skipped := in.Report.Counts()
	fmt.Fprintf(&b, "# Build Matrix Run %s\n\n", in.Report.RunID)
	fmt.Fprintf(&b, "- **Status**: %s\n", in.Report.Status())
	fmt.Fprintf(&b, "- **Policy**: %s\n", in.Report.Policy)
	if in.Commit != "" {
		fmt.Fprintf(&b, "- **Commit**: `%s`\n", in.Commit)
	}
	fmt.Fprintf(&b, "- **Started**: %s\n", in.Report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Duration**: %s\n", in.Report.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "- **Jobs**: %d succeeded, %d failed, %d skipped\n\n", succeeded, failed, skipped)

	b.WriteString("## Jobs\n\n")
	b.WriteString("| Target | Combination | Status | Duration | Artifact |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, res := range in.Report.Results {
		combo := res.Job.Key
		if combo == "" {
			combo = "(none)"
		}
		artifact := res.ArtifactRef
		if artifact == "" {
			artifact = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			res.Job.Target.Name, combo, res.Status,
			res.Duration.Round(time.Millisecond), artifact)
	}
	b.WriteString("\n")

	if failed > 0 {
		b.WriteString("## Failures\n\n")
		for _, res := range in.Report.Failed() {
			fmt.Fprintf(&b, "### %s\n\n", res.Job.Name())
			if res.Err != "" {
				fmt.Fprintf(&b, "%s\n\n", res.Err)
			}
			if res.Diagnostics != "" {
				fmt.Fprintf(&b, "```\n%s\n```\n\n", strings.TrimRight(res.Diagnostics, "\n"))
			}
		}
	}

	if len(in.Rejections) > 0 {
		b.WriteString("## Rejected Combinations\n\n")
		b.WriteString("| Target | Combination | Reason |\n")
		b.WriteString("|---|---|---|\n")
		for _, rej := range in.Rejections {
			for _, reason := range rej.Reasons {
				fmt.Fprintf(&b, "| %s | %s | %s |\n", rej.Target.Name, rej.Key, reason.Detail)
			}
		}
		b.WriteString("\n")
	}

	if in.Publish != nil {
		b.WriteString("## Image Publish\n\n")
		fmt.Fprintf(&b, "- **State**: %s\n", in.Publish.State)
		fmt.Fprintf(&b, "- **Tag**: `%s`\n", in.Publish.Tag)
		if in.Publish.Digest != "" {
			fmt.Fprintf(&b, "- **Digest**: `%s`\n", in.Publish.Digest)
		}
		fmt.Fprintf(&b, "- **Architectures**: %s\n", strings.Join(in.Publish.Architectures, ", "))
		if in.Publish.FailedStage != "" {
			fmt.Fprintf(&b, "- **Failed stage**: %s\n", in.Publish.FailedStage)
		}
	}

	return b.String()
}

// HTML renders the Markdown report to an HTML fragment.
func HTML(in Input) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(in)), &buf); err != nil {
		return "", fmt.Errorf("render report HTML: %w", err)
	}
	return buf.String(), nil
}
