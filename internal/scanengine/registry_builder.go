package scanengine

import (
	"github.com/scancore/engine/internal/collaborators"
	"github.com/scancore/engine/internal/detect"
)

// Dependencies bundles every collaborator adapter the concrete scanners
// need, resolved once at startup.
type Dependencies struct {
	BlobFetcher collaborators.BlobFetcher
	FileLister  collaborators.FileLister
	HTTPFetcher collaborators.HTTPFetcher
	OCR         detect.OCRAdapter
	DBSampler   TableSampler
}

// BuildRegistry constructs and registers one instance of every scan-type
// implementation against the closed 8-type enum fixed in
// config.AllScanTypes.
func BuildRegistry(deps Dependencies) *Registry {
	r := NewRegistry()
	r.Register(NewCodeScanner(deps.FileLister))
	r.Register(NewDocumentScanner(deps.BlobFetcher))
	r.Register(NewImageScanner(deps.BlobFetcher, deps.OCR))
	r.Register(NewDatabaseScanner(deps.DBSampler))
	r.Register(NewAPIScanner(deps.HTTPFetcher))
	r.Register(NewWebsiteScanner(deps.HTTPFetcher))
	r.Register(NewAIModelScanner(deps.BlobFetcher))
	r.Register(NewDPIAScanner())
	return r
}
