package detect

import (
	"github.com/google/uuid"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// OCRRegion is one recognized text region from an image.
type OCRRegion struct {
	Text       string
	Confidence float64
}

// OCRAdapter is the optional image-OCR capability. When unavailable, the
// image scanner degrades gracefully rather than failing the job.
type OCRAdapter interface {
	Available() bool
	Extract(image []byte) ([]OCRRegion, error)
}

// NoopOCRAdapter reports itself unavailable, used when no OCR backend is
// configured for a deployment.
type NoopOCRAdapter struct{}

func (NoopOCRAdapter) Available() bool                         { return false }
func (NoopOCRAdapter) Extract([]byte) ([]OCRRegion, error)      { return nil, nil }

// ScanImage extracts text via adapter (when available) and forwards every
// recognized region into the text scanner, scaling confidence by the
// OCR region's own recognition confidence.
func ScanImage(jobID uuid.UUID, image []byte, locationPrefix string, adapter OCRAdapter, snap *registry.Snapshot, regionSet []string) ([]domain.Finding, []domain.Diagnostic) {
	if adapter == nil || !adapter.Available() {
		return nil, []domain.Diagnostic{{
			Level:   domain.DiagLevelWarning,
			Message: "OCR not available",
		}}
	}

	regions, err := adapter.Extract(image)
	if err != nil {
		return nil, []domain.Diagnostic{{
			Level:   domain.DiagLevelError,
			Message: "OCR extraction failed: " + err.Error(),
		}}
	}

	var findings []domain.Finding
	for i, region := range regions {
		loc := locationPrefix
		regionFindings := ScanText(jobID, []byte(region.Text), loc, snap, regionSet)
		for _, f := range regionFindings {
			f.Confidence *= region.Confidence
			f.Location = loc + ",region=" + itoa(i)
			findings = append(findings, f)
		}
	}
	return findings, nil
}
