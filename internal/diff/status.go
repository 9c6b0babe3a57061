package diff

import (
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// FileStatus describes what happened to a file as a whole.
type FileStatus string

const (
	StatusModified FileStatus = "modified"
	StatusAdded    FileStatus = "added"
	StatusDeleted  FileStatus = "deleted"
	StatusRenamed  FileStatus = "renamed"
	StatusCopied   FileStatus = "copied"
	StatusBinary   FileStatus = "binary"
)

// sectionStatus reads one section's extended headers (new file mode,
// rename from, Binary files ... differ) with go-gitdiff. A section
// go-gitdiff rejects is StatusModified; other sections are unaffected.
func sectionStatus(section string) FileStatus {
	parsed, _, err := gitdiff.Parse(strings.NewReader("diff --git " + section))
	if err != nil || len(parsed) != 1 {
		return StatusModified
	}
	return statusOf(parsed[0])
}

func statusOf(f *gitdiff.File) FileStatus {
	switch {
	case f.IsBinary:
		return StatusBinary
	case f.IsNew:
		return StatusAdded
	case f.IsDelete:
		return StatusDeleted
	case f.IsRename:
		return StatusRenamed
	case f.IsCopy:
		return StatusCopied
	default:
		return StatusModified
	}
}
