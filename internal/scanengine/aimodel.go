package scanengine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/scancore/engine/internal/collaborators"
	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/detect"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// AIRiskCategory is the EU AI Act risk classification.
type AIRiskCategory string

const (
	AIRiskProhibited AIRiskCategory = "Prohibited"
	AIRiskHigh       AIRiskCategory = "High"
	AIRiskLimited    AIRiskCategory = "Limited"
	AIRiskGPAI       AIRiskCategory = "GPAI"
	AIRiskMinimal    AIRiskCategory = "Minimal"
)

var prohibitedTerms = []string{"social scoring", "subliminal manipulation", "real-time biometric categorization"}
var highRiskTerms = []string{"credit scoring", "recruitment", "law enforcement", "critical infrastructure", "biometric identification"}
var limitedRiskTerms = []string{"chatbot", "deepfake", "emotion recognition"}
var gpaiTerms = []string{"general-purpose", "foundation model", "large language model"}

// ClassifyAIRisk matches textual predicates from the documentation against
// the EU AI Act's risk tiers, in descending severity order.
func ClassifyAIRisk(docText string) AIRiskCategory {
	lower := strings.ToLower(docText)
	for _, t := range prohibitedTerms {
		if strings.Contains(lower, t) {
			return AIRiskProhibited
		}
	}
	for _, t := range highRiskTerms {
		if strings.Contains(lower, t) {
			return AIRiskHigh
		}
	}
	for _, t := range gpaiTerms {
		if strings.Contains(lower, t) {
			return AIRiskGPAI
		}
	}
	for _, t := range limitedRiskTerms {
		if strings.Contains(lower, t) {
			return AIRiskLimited
		}
	}
	return AIRiskMinimal
}

var requiredDocItems = map[AIRiskCategory][]string{
	AIRiskHigh: {"risk management", "bias assessment", "human oversight", "technical documentation"},
	AIRiskGPAI: {"bias assessment", "technical documentation"},
}

// AIModelScanner inspects model artifact metadata plus accompanying
// documentation text, classifies EU AI Act risk category, and verifies
// the presence (not correctness) of declared bias-assessment and other
// documentation items.
type AIModelScanner struct {
	fetcher collaborators.BlobFetcher
}

func NewAIModelScanner(fetcher collaborators.BlobFetcher) *AIModelScanner {
	return &AIModelScanner{fetcher: fetcher}
}

func (s *AIModelScanner) ScanType() config.ScanType { return config.ScanTypeAIModel }
func (s *AIModelScanner) RetrySafe() bool            { return true }

func (s *AIModelScanner) Run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot) (<-chan domain.ScanEvent, error) {
	if req.Target.ModelArtifactPath == "" && req.Target.BlobHandle == "" {
		return nil, fmt.Errorf("scanengine: aimodel scan requires a model artifact reference")
	}
	ch := make(chan domain.ScanEvent, 16)
	go s.run(ctx, req, snap, ch)
	return ch, nil
}

func (s *AIModelScanner) run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot, ch chan<- domain.ScanEvent) {
	defer close(ch)

	var docText string
	handle := req.Target.BlobHandle
	if handle == "" {
		handle = req.Target.ModelArtifactPath
	}
	if s.fetcher != nil && handle != "" {
		if rc, err := s.fetcher.Fetch(ctx, handle); err == nil {
			defer rc.Close()
			if b, err := io.ReadAll(rc); err == nil {
				docText = string(b)
			}
		}
	}

	meta := inferMetadataFromText(docText)
	findings := detect.AnalyzeModelArtifact(req.RequestID, meta)

	emitChan(ctx, ch, domain.ProgressEvent(50, "classifying risk category"))

	risk := ClassifyAIRisk(docText)
	for _, item := range requiredDocItems[risk] {
		if !strings.Contains(strings.ToLower(docText), item) {
			findings = append(findings, domain.Finding{
				Type: "ai_act_documentation", Category: "accuracy", Severity: "High",
				Location: "documentation", Excerpt: "missing required item: " + item,
				Confidence: 0.8, RuleID: "AI_ACT_MISSING_DOC_" + strings.ToUpper(strings.ReplaceAll(item, " ", "_")),
			})
		}
	}

	partial := false
	for _, f := range findings {
		if !emitChan(ctx, ch, domain.FindingEvent(f)) {
			partial = true
			break
		}
	}

	emitChan(ctx, ch, domain.DoneEvent(partial, map[string]int{"files_scanned": 1}, map[string]interface{}{
		"ai_risk_category": string(risk),
	}))
}

func inferMetadataFromText(docText string) detect.ModelArtifactMetadata {
	lower := strings.ToLower(docText)
	meta := detect.ModelArtifactMetadata{}
	switch {
	case strings.Contains(lower, "pytorch"):
		meta.Framework = "pytorch"
	case strings.Contains(lower, "tensorflow"):
		meta.Framework = "tensorflow"
	case strings.Contains(lower, "onnx"):
		meta.Framework = "onnx"
	}
	meta.HasEmbeddingLayer = strings.Contains(lower, "embedding")
	return meta
}

var _ Scanner = (*AIModelScanner)(nil)
