package artifacts

import "fmt"

// Predicted artifact paths for batch crawls.
//
// Callers receive these paths in the job creation response, before any crawl
// runs. The coordinator later writes exactly these paths, stub content
// included for failed URLs, so clients can poll them without re-reading job
// state.

// BatchNamespace returns the logical namespace for a batch crawl job
func BatchNamespace(jobID string) string {
	return "batch/" + jobID
}

// ReportFilename returns the markdown report name for the i-th URL
func ReportFilename(i int) string {
	return fmt.Sprintf("report_%d.md", i)
}

// DataFilename returns the structured data name for the i-th URL
func DataFilename(i int) string {
	return fmt.Sprintf("data_%d.json", i)
}

// ScreenshotFilename returns the screenshot name for the i-th URL
func ScreenshotFilename(i int) string {
	return fmt.Sprintf("screenshot_%d.png", i)
}

// CollatedFilename is the combined document written after the batch settles
const CollatedFilename = "collated.md"

// Join builds the logical path an ArtifactStore returns from Save
func Join(namespace, filename string) string {
	return namespace + "/" + filename
}

// PredictedReportPath returns the logical path of the i-th URL's report
func PredictedReportPath(jobID string, i int) string {
	return Join(BatchNamespace(jobID), ReportFilename(i))
}

// PredictedDataPath returns the logical path of the i-th URL's data file
func PredictedDataPath(jobID string, i int) string {
	return Join(BatchNamespace(jobID), DataFilename(i))
}

// PredictedScreenshotPath returns the logical path of the i-th URL's screenshot
func PredictedScreenshotPath(jobID string, i int) string {
	return Join(BatchNamespace(jobID), ScreenshotFilename(i))
}

// PredictedCollatedPath returns the logical path of the batch's combined report
func PredictedCollatedPath(jobID string) string {
	return Join(BatchNamespace(jobID), CollatedFilename)
}
