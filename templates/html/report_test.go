package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/verilens/evidence-api/models"
)

func TestRenderEvidenceReportMinimalRecord(t *testing.T) {
	ev := models.Evidence{
		ID: "ev-1234",
		Details: models.EvidenceDetails{
			FileName:   "scene.png",
			Status:     models.StatusPending,
			UploadedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	html := RenderEvidenceReport(ev, "system")

	assert.Contains(t, html, "Forensic Evidence Report")
	assert.Contains(t, html, "scene.png")
	// sections without data are omitted entirely
	assert.NotContains(t, html, "Analysis Sub-scores")
	assert.NotContains(t, html, "Metadata")
	assert.NotContains(t, html, "Anomalies")
	assert.NotContains(t, html, "Face Detection")
}

func TestRenderEvidenceReportTampered(t *testing.T) {
	ev := models.Evidence{
		ID: "ev-1234",
		Details: models.EvidenceDetails{
			FileName:   "forged.jpg",
			Label:      "Exhibit B",
			Status:     models.StatusComplete,
			Verdict:    models.VerdictTampered,
			Confidence: 88.5,
			Scores: &models.AnalysisScores{
				TamperingProbability: 0.91,
			},
			Anomalies: []string{"copy-move region detected"},
		},
	}

	html := RenderEvidenceReport(ev, "analyst@example.com")

	assert.Contains(t, html, "TAMPERED")
	// the label takes precedence over the file name in the heading
	assert.Contains(t, html, "Exhibit B")
	assert.Contains(t, html, "copy-move region detected")
	assert.Contains(t, html, "likely been manipulated")
	assert.Contains(t, html, "analyst@example.com")
}

func TestRenderEvidenceReportAuthenticConclusion(t *testing.T) {
	ev := models.Evidence{
		ID: "ev-1234",
		Details: models.EvidenceDetails{
			FileName:   "scene.png",
			Status:     models.StatusComplete,
			Verdict:    models.VerdictAuthentic,
			Confidence: 97.2,
		},
	}

	html := RenderEvidenceReport(ev, "system")

	assert.Contains(t, html, "AUTHENTIC")
	assert.Contains(t, html, "No indications of manipulation")
}

func TestRenderEvidenceReportEscapesMetadata(t *testing.T) {
	ev := models.Evidence{
		ID: "ev-1234",
		Details: models.EvidenceDetails{
			FileName: "scene.png",
			Status:   models.StatusComplete,
			Metadata: map[string]string{
				"Software": "<script>alert(1)</script>",
			},
		},
	}

	html := RenderEvidenceReport(ev, "system")

	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestRenderGenericEmail(t *testing.T) {
	html := RenderGenericEmail("Analysis complete", "Your evidence is ready.\nOpen the dashboard to review it.")

	assert.Contains(t, html, "Analysis complete")
	assert.Contains(t, html, "Your evidence is ready.<br>Open the dashboard to review it.")
	assert.Contains(t, html, "Verilens Evidence Platform")
}

func TestRenderGenericEmailEscapesContent(t *testing.T) {
	html := RenderGenericEmail("<b>bold</b>", "a & b")

	assert.NotContains(t, html, "<b>bold</b>")
	assert.Contains(t, html, "&lt;b&gt;bold&lt;/b&gt;")
	assert.Contains(t, html, "a &amp; b")
}
