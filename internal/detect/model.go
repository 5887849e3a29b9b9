package detect

import (
	"github.com/google/uuid"
	"github.com/scancore/engine/internal/domain"
)

// ModelArtifactMetadata is what the model-artifact analyzer extracts from
// a serialized model file without ever executing its code.
type ModelArtifactMetadata struct {
	Framework        string // "", "pytorch", "tensorflow", "onnx", ...
	ParameterCount   int64
	InputShapes      []string
	OutputShapes     []string
	HasEmbeddingLayer bool
}

// AnalyzeModelArtifact turns extracted metadata into findings. An
// unrecognized framework produces a single Info finding rather than
// failing the scan.
func AnalyzeModelArtifact(jobID uuid.UUID, meta ModelArtifactMetadata) []domain.Finding {
	if meta.Framework == "" {
		return []domain.Finding{{
			FindingID: uuid.New(),
			JobID:     jobID,
			Type:      "model_metadata",
			Category:  "documentation",
			Severity:  "Info",
			Location:  "model",
			Excerpt:   "framework not recognized",
			Confidence: 1.0,
			RuleID:    "MODEL_FRAMEWORK_UNKNOWN",
		}}
	}

	var findings []domain.Finding
	if meta.HasEmbeddingLayer {
		findings = append(findings, domain.Finding{
			FindingID:  uuid.New(),
			JobID:      jobID,
			Type:       "model_metadata",
			Category:   "data_minimisation",
			Severity:   "Info",
			Location:   "model",
			Excerpt:    "embedding layer present — may retain representations of input data",
			Confidence: 1.0,
			RuleID:     "MODEL_HAS_EMBEDDING_LAYER",
		})
	}
	return findings
}
