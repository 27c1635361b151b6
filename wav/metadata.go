package wav

import (
	"fmt"
	"os/exec"

	"github.com/tidwall/gjson"
)

// Metadata holds the subset of ffprobe's format tags the driver cares
// about when a song isn't given an explicit title/artist.
type Metadata struct {
	Title  string
	Artist string
}

// GetMetadata shells out to ffprobe for the container's format tags,
// mirroring GetAudioDuration's ffprobe-via-exec pattern.
func GetMetadata(path string) (Metadata, error) {
	cmd := exec.Command(
		"ffprobe",
		"-v", "quiet",
		"-show_format",
		"-print_format", "json",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe metadata query failed: %v", err)
	}

	tags := gjson.GetBytes(out, "format.tags")
	return Metadata{
		Title:  firstOf(tags.Get("title"), tags.Get("Title")),
		Artist: firstOf(tags.Get("artist"), tags.Get("Artist")),
	}, nil
}

func firstOf(vals ...gjson.Result) string {
	for _, v := range vals {
		if v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
