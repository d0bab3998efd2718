package queue

import (
	"encoding/json"
	"net/http"
	"os"

	"media-pipeline/internal/modification"
)

// IntakeManifest is the optional sidecar the upload handler writes next to
// the raw intake bytes. It carries what only the upload layer knows: the
// declared mime type and any user-requested modifications.
type IntakeManifest struct {
	MimeType string                `json:"mimeType,omitempty"`
	Actions  []modification.Action `json:"actions,omitempty"`
}

// manifestPath names the sidecar for an intake artifact.
func manifestPath(intakePath string) string {
	return intakePath + ".json"
}

// loadManifest reads the sidecar for an intake artifact. A missing sidecar
// is the no-modification default; the mime type then falls back to content
// sniffing.
func loadManifest(intakePath string) (IntakeManifest, error) {
	var m IntakeManifest

	data, err := os.ReadFile(manifestPath(intakePath))
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	return m, nil
}

// sniffMime reads the leading bytes of a file and detects its content type.
func sniffMime(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	return http.DetectContentType(buf[:n])
}
