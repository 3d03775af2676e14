package artifacts

type Kind string

const (
	LogArtifact        Kind = "log"        // Device or app log files
	ScreenshotArtifact Kind = "screenshot" // Screenshots taken during a run
	VideoArtifact      Kind = "video"      // Screen recordings of a run
	TextArtifact       Kind = "text"       // Generic text artifacts
)

// Artifact is a captured file together with its classification.
type Artifact struct {
	ID   string
	Kind Kind
	URI  string

	ContentType string
	Metadata    map[string]any
}
