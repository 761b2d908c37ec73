package fetch

import "strings"

// Fixed download set for the BoolQ reading-comprehension pipeline.
const (
	boolqTrainURL = "https://storage.googleapis.com/boolq/train.jsonl"
	boolqDevURL   = "https://storage.googleapis.com/boolq/dev.jsonl"
	gloveURL      = "http://nlp.stanford.edu/data/glove.840B.300d.zip"
)

// Asset pairs a source URL with a destination path relative to the data root.
type Asset struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Dest   string `json:"dest"`             // slash-separated, relative to the data dir
	SHA256 string `json:"sha256,omitempty"` // optional expected digest, lowercase hex
}

// Archive reports whether the destination is a zip archive that must be
// extracted into its parent directory after download.
func (a Asset) Archive() bool {
	return strings.HasSuffix(a.Dest, ".zip")
}

// Manifest returns the fixed asset list in fetch order.
func Manifest() []Asset {
	return []Asset{
		{
			Name: "boolq-train",
			URL:  boolqTrainURL,
			Dest: "boolq/train.jsonl",
		},
		{
			Name: "boolq-dev",
			URL:  boolqDevURL,
			Dest: "boolq/dev.jsonl",
		},
		{
			Name: "glove-840b-300d",
			URL:  gloveURL,
			Dest: "glove/glove.840B.300d.zip",
		},
	}
}

// Dirs returns the output directories the manifest writes into,
// relative to the data root.
func Dirs() []string {
	return []string{"boolq", "glove"}
}
