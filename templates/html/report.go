package templates

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/verilens/evidence-api/models"
)

// RenderEvidenceReport generates the self-contained HTML analysis report for
// one completed evidence record. Optional sections (sub-scores, metadata,
// anomalies, faces) are omitted entirely when the record carries no data for
// them.
func RenderEvidenceReport(ev models.Evidence, generatedBy string) string {
	d := ev.Details
	var b strings.Builder

	b.WriteString(fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Evidence Report - %s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 40px; background: #f4f4f5; color: #18181b; }
    .report { max-width: 800px; margin: 0 auto; background: #fff; padding: 40px; border: 1px solid #e4e4e7; }
    h1 { font-size: 22px; margin: 0 0 4px 0; }
    h2 { font-size: 16px; border-bottom: 1px solid #e4e4e7; padding-bottom: 6px; margin-top: 32px; }
    .meta { color: #71717a; font-size: 13px; }
    .badge { display: inline-block; padding: 4px 14px; border-radius: 4px; font-weight: 700; font-size: 14px; }
    .badge.authentic { background: #dcfce7; color: #166534; }
    .badge.tampered { background: #fee2e2; color: #991b1b; }
    .badge.pending { background: #fef9c3; color: #854d0e; }
    .bar { background: #e4e4e7; height: 14px; border-radius: 7px; overflow: hidden; margin-top: 6px; }
    .bar span { display: block; height: 14px; background: #0e7490; }
    table { border-collapse: collapse; width: 100%%; font-size: 13px; }
    td, th { border: 1px solid #e4e4e7; padding: 6px 10px; text-align: left; }
    img.evidence { max-width: 100%%; border: 1px solid #e4e4e7; margin-top: 10px; }
    ul.anomalies li { color: #991b1b; }
    .conclusion { margin-top: 24px; padding: 16px; background: #f4f4f5; font-style: italic; }
  </style>
</head>
<body>
<div class="report">
  <h1>Forensic Evidence Report</h1>
  <div class="meta">Record %s &middot; generated %s by %s</div>
`, html.EscapeString(displayName(d)), html.EscapeString(ev.ID),
		time.Now().UTC().Format("2006-01-02 15:04 MST"), html.EscapeString(generatedBy)))

	b.WriteString(renderSummary(d))
	b.WriteString(renderImage(d))
	b.WriteString(renderScores(d))
	b.WriteString(renderMetadata(d))
	b.WriteString(renderAnomalies(d))
	b.WriteString(renderFaces(d))
	b.WriteString(renderConclusion(d))

	b.WriteString("</div>\n</body>\n</html>\n")
	return b.String()
}

func displayName(d models.EvidenceDetails) string {
	if d.Label != "" {
		return d.Label
	}
	return d.FileName
}

func renderSummary(d models.EvidenceDetails) string {
	badgeClass, badgeText := "pending", "ANALYSIS PENDING"
	switch d.Verdict {
	case models.VerdictAuthentic:
		badgeClass, badgeText = "authentic", "AUTHENTIC"
	case models.VerdictTampered:
		badgeClass, badgeText = "tampered", "TAMPERED"
	}

	var b strings.Builder
	b.WriteString("  <h2>Summary</h2>\n")
	b.WriteString(fmt.Sprintf(`  <p><span class="badge %s">%s</span></p>`+"\n", badgeClass, badgeText))
	b.WriteString("  <table>\n")
	b.WriteString(fmt.Sprintf("    <tr><th>File</th><td>%s</td></tr>\n", html.EscapeString(d.FileName)))
	if d.Label != "" {
		b.WriteString(fmt.Sprintf("    <tr><th>Label</th><td>%s</td></tr>\n", html.EscapeString(d.Label)))
	}
	b.WriteString(fmt.Sprintf("    <tr><th>Type</th><td>%s</td></tr>\n", html.EscapeString(d.MimeType)))
	b.WriteString(fmt.Sprintf("    <tr><th>Size</th><td>%s</td></tr>\n", html.EscapeString(d.Size)))
	if d.CaseID != "" {
		b.WriteString(fmt.Sprintf("    <tr><th>Case</th><td>%s %s</td></tr>\n",
			html.EscapeString(d.CaseNumber), html.EscapeString(d.CaseName)))
	}
	if d.BlockchainTxHash != "" {
		b.WriteString(fmt.Sprintf("    <tr><th>Blockchain record</th><td>%s</td></tr>\n", html.EscapeString(d.BlockchainTxHash)))
	}
	if d.IpfsHash != "" {
		b.WriteString(fmt.Sprintf("    <tr><th>IPFS content hash</th><td>%s</td></tr>\n", html.EscapeString(d.IpfsHash)))
	}
	b.WriteString("  </table>\n")

	if d.Status == models.StatusComplete {
		b.WriteString(fmt.Sprintf(`  <p>Confidence: %.1f%%</p>
  <div class="bar"><span style="width: %.1f%%"></span></div>`+"\n", d.Confidence, clampPercent(d.Confidence)))
	}
	return b.String()
}

func renderImage(d models.EvidenceDetails) string {
	if d.Payload == "" {
		return ""
	}
	// payload is already a data URI, safe to embed directly after escaping
	return fmt.Sprintf("  <h2>Evidence Image</h2>\n  <img class=\"evidence\" src=\"%s\" alt=\"%s\">\n",
		html.EscapeString(d.Payload), html.EscapeString(d.FileName))
}

func renderScores(d models.EvidenceDetails) string {
	if d.Scores == nil && d.AIScores == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("  <h2>Analysis Sub-scores</h2>\n  <table>\n")
	if d.Scores != nil {
		b.WriteString(fmt.Sprintf("    <tr><th>Tampering probability</th><td>%.1f%%</td></tr>\n", d.Scores.TamperingProbability))
		b.WriteString(fmt.Sprintf("    <tr><th>AI-generation probability</th><td>%.1f%%</td></tr>\n", d.Scores.AIGeneratedProbability))
		b.WriteString(fmt.Sprintf("    <tr><th>Quality score</th><td>%.1f</td></tr>\n", d.Scores.QualityScore))
		b.WriteString(fmt.Sprintf("    <tr><th>Scam probability</th><td>%.1f%%</td></tr>\n", d.Scores.ScamProbability))
	}
	if d.AIScores != nil {
		b.WriteString(fmt.Sprintf("    <tr><th>AI detection</th><td>%.1f%%</td></tr>\n", d.AIScores.AIGenerated))
		b.WriteString(fmt.Sprintf("    <tr><th>Deepfake</th><td>%.1f%%</td></tr>\n", d.AIScores.Deepfake))
	}
	b.WriteString("  </table>\n")
	return b.String()
}

func renderMetadata(d models.EvidenceDetails) string {
	if len(d.Metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d.Metadata))
	for k := range d.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("  <h2>Metadata</h2>\n  <table>\n")
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("    <tr><th>%s</th><td>%s</td></tr>\n",
			html.EscapeString(k), html.EscapeString(d.Metadata[k])))
	}
	b.WriteString("  </table>\n")
	return b.String()
}

func renderAnomalies(d models.EvidenceDetails) string {
	if len(d.Anomalies) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("  <h2>Anomalies</h2>\n  <ul class=\"anomalies\">\n")
	for _, a := range d.Anomalies {
		b.WriteString(fmt.Sprintf("    <li>%s</li>\n", html.EscapeString(a)))
	}
	b.WriteString("  </ul>\n")
	return b.String()
}

func renderFaces(d models.EvidenceDetails) string {
	if d.Faces == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("  <h2>Face Detection</h2>\n")
	b.WriteString(fmt.Sprintf("  <p>%d face(s) detected.</p>\n", d.Faces.FacesDetected))
	if len(d.Faces.Matches) > 0 {
		b.WriteString("  <table>\n    <tr><th>Match</th><th>Similarity</th></tr>\n")
		for _, m := range d.Faces.Matches {
			b.WriteString(fmt.Sprintf("    <tr><td>%s</td><td>%.1f%%</td></tr>\n",
				html.EscapeString(m.Name), m.Similarity))
		}
		b.WriteString("  </table>\n")
	}
	return b.String()
}

func renderConclusion(d models.EvidenceDetails) string {
	var conclusion string
	switch {
	case d.Status != models.StatusComplete:
		conclusion = "Analysis has not completed for this evidence record; no conclusion can be drawn yet."
	case d.Verdict == models.VerdictTampered:
		conclusion = "Analysis indicates this image has likely been manipulated. The evidence should be treated as unreliable pending further review."
	default:
		conclusion = "No indications of manipulation were detected. The image is consistent with an unmodified original."
	}
	return fmt.Sprintf("  <div class=\"conclusion\">%s</div>\n", conclusion)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
