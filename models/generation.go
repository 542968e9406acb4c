package models

// GenerationStatus is the persisted state of a project's artifact builds.
// The zero value means the project has never been generated.
type GenerationStatus string

const (
	GenerationStatusNone           GenerationStatus = ""
	GenerationStatusQueued         GenerationStatus = "queued"
	GenerationStatusGeneratingPDF  GenerationStatus = "generating_pdf"
	GenerationStatusGeneratingEPUB GenerationStatus = "generating_epub"
	GenerationStatusCompleted      GenerationStatus = "completed"
	GenerationStatusFailed         GenerationStatus = "failed"
)

// BusyGenerationStatuses lists every status that blocks a new generation request.
var BusyGenerationStatuses = []GenerationStatus{
	GenerationStatusQueued,
	GenerationStatusGeneratingPDF,
	GenerationStatusGeneratingEPUB,
}

// IsBusy reports whether a generation is queued or running.
func (s GenerationStatus) IsBusy() bool {
	for _, busy := range BusyGenerationStatuses {
		if s == busy {
			return true
		}
	}
	return false
}

// GeneratingStatusFor returns the in-flight status for the given format.
func GeneratingStatusFor(format BookFormat) GenerationStatus {
	if format == BookFormatEPUB {
		return GenerationStatusGeneratingEPUB
	}
	return GenerationStatusGeneratingPDF
}
