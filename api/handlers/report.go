package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/phpdave11/gofpdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/verilens/evidence-api/api"
	"github.com/verilens/evidence-api/config"
	"github.com/verilens/evidence-api/databases"
	"github.com/verilens/evidence-api/models"
	templates "github.com/verilens/evidence-api/templates/html"
)

// Report exported for testing purposes
type Report struct {
	RDB databases.ReportDatabase
	EDB databases.EvidenceDatabase
}

// CreateReportHandler registers that a report was generated for an evidence
// record, for the dashboard's reports counter
func (rp Report) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	var report models.GeneratedReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if report.EvidenceID == "" {
		config.ErrorStatus("evidenceId is required", http.StatusBadRequest, w, fmt.Errorf("missing evidenceId"))
		return
	}
	report.ID = primitive.NewObjectID()
	report.CreatedAt = primitive.NewDateTimeFromTime(time.Now())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := rp.RDB.InsertOne(ctx, report); err != nil {
		config.ErrorStatus("failed to create report", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(report)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// EvidenceReportHandler renders the HTML analysis report for one record
func (rp Report) EvidenceReportHandler(w http.ResponseWriter, r *http.Request) {
	evidenceID := mux.Vars(r)["evidence_id"]
	generatedBy := r.URL.Query().Get("generated_by")
	if generatedBy == "" {
		generatedBy = "system"
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	record, err := rp.EDB.FindOne(ctx, bson.M{"_id": evidenceID})
	if err != nil {
		config.ErrorStatus("failed to get evidence by ID", http.StatusNotFound, w, err)
		return
	}

	html := templates.RenderEvidenceReport(*record, generatedBy)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, html)
}

// EvidenceReportPDFHandler renders the analysis report for one record as a
// downloadable PDF
func (rp Report) EvidenceReportPDFHandler(w http.ResponseWriter, r *http.Request) {
	evidenceID := mux.Vars(r)["evidence_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	record, err := rp.EDB.FindOne(ctx, bson.M{"_id": evidenceID})
	if err != nil {
		config.ErrorStatus("failed to get evidence by ID", http.StatusNotFound, w, err)
		return
	}

	var buf bytes.Buffer
	if err := buildReportPDF(&buf, *record); err != nil {
		config.ErrorStatus("failed to build pdf report", http.StatusInternalServerError, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="evidence-report-%s.pdf"`, evidenceID))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// buildReportPDF lays out the forensic report as a PDF document
func buildReportPDF(w io.Writer, record models.Evidence) error {
	d := record.Details

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Forensic Evidence Report", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Forensic Evidence Report")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.Cell(0, 6, fmt.Sprintf("Record %s, generated %s",
		record.ID, time.Now().UTC().Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)
	pdf.SetTextColor(0, 0, 0)

	verdictLine := "ANALYSIS PENDING"
	switch d.Verdict {
	case models.VerdictAuthentic:
		verdictLine = "VERDICT: AUTHENTIC"
		pdf.SetTextColor(22, 101, 52)
	case models.VerdictTampered:
		verdictLine = "VERDICT: TAMPERED"
		pdf.SetTextColor(153, 27, 27)
	}
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, verdictLine)
	pdf.Ln(8)
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "", 10)
	pdfRow(pdf, "File", d.FileName)
	if d.Label != "" {
		pdfRow(pdf, "Label", d.Label)
	}
	pdfRow(pdf, "Type", d.MimeType)
	pdfRow(pdf, "Size", d.Size)
	if d.Status == models.StatusComplete {
		pdfRow(pdf, "Confidence", fmt.Sprintf("%.1f%%", d.Confidence))
	}
	if d.CaseID != "" {
		pdfRow(pdf, "Case", fmt.Sprintf("%s %s", d.CaseNumber, d.CaseName))
	}
	if d.BlockchainTxHash != "" {
		pdfRow(pdf, "Blockchain record", d.BlockchainTxHash)
	}
	if d.IpfsHash != "" {
		pdfRow(pdf, "IPFS content hash", d.IpfsHash)
	}
	pdf.Ln(4)

	embedReportImage(pdf, d)

	if d.Scores != nil {
		pdfSection(pdf, "Analysis Sub-scores")
		pdfRow(pdf, "Tampering probability", fmt.Sprintf("%.1f%%", d.Scores.TamperingProbability))
		pdfRow(pdf, "AI-generation probability", fmt.Sprintf("%.1f%%", d.Scores.AIGeneratedProbability))
		pdfRow(pdf, "Quality score", fmt.Sprintf("%.1f", d.Scores.QualityScore))
		pdfRow(pdf, "Scam probability", fmt.Sprintf("%.1f%%", d.Scores.ScamProbability))
	}

	if len(d.Metadata) > 0 {
		pdfSection(pdf, "Metadata")
		keys := make([]string, 0, len(d.Metadata))
		for k := range d.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pdfRow(pdf, k, d.Metadata[k])
		}
	}

	if len(d.Anomalies) > 0 {
		pdfSection(pdf, "Anomalies")
		pdf.SetFont("Helvetica", "", 10)
		for _, a := range d.Anomalies {
			pdf.MultiCell(0, 6, "- "+a, "", "L", false)
		}
	}

	if err := pdf.Output(w); err != nil {
		return err
	}
	return pdf.Error()
}

// embedReportImage adds the evidence image to the PDF when the payload is a
// decodable raster format. Undecodable payloads are skipped, not fatal.
func embedReportImage(pdf *gofpdf.Fpdf, d models.EvidenceDetails) {
	data, mimeType, err := decodePayload(d.Payload)
	if err != nil {
		return
	}
	var imageType string
	switch mimeType {
	case "image/png":
		imageType = "PNG"
	case "image/jpeg", "image/jpg":
		imageType = "JPG"
	case "image/gif":
		imageType = "GIF"
	default:
		zap.S().Debugw("skipping pdf image embed for unsupported type", "mimeType", mimeType)
		return
	}

	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
	info := pdf.RegisterImageOptionsReader("evidence-image", opts, bytes.NewReader(data))
	if info == nil || pdf.Err() {
		// a corrupt payload must not sink the rest of the report
		pdf.ClearError()
		return
	}
	pdf.ImageOptions("evidence-image", -1, -1, 120, 0, true, opts, 0, "")
	pdf.Ln(4)
}

func pdfSection(pdf *gofpdf.Fpdf, title string) {
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
}

func pdfRow(pdf *gofpdf.Fpdf, key, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(60, 6, key)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6, value, "", "L", false)
}
