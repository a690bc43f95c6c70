package torrent

import (
	"path/filepath"
	"time"
)

// HashLength is the size of a SHA-1 digest: the info hash and every piece
// hash.
const HashLength = 20

// Descriptor is the validated content of a .torrent file. It is built once by
// Parse and never modified afterwards.
type Descriptor struct {
	Announce     string     // tracker URL
	AnnounceList [][]string // tiers of backup trackers, BEP 12
	InfoHash     [20]byte   // SHA-1 of the exact bytes of the info dictionary
	PieceHashes  [][20]byte
	PieceLength  int64
	Length       int64 // total content length; the sum of Files in multi-file mode
	Name         string
	Files        []File
	Private      bool
	Comment      string
	CreatedBy    string
	CreationDate time.Time
}

type File struct {
	Length int64
	Path   []string
}

func (d *Descriptor) IsMultiFile() bool {
	return d.Files != nil
}

func (d *Descriptor) NumPieces() int {
	return len(d.PieceHashes)
}

// PieceBounds returns the byte range [begin, end) of piece index within the
// content.
func (d *Descriptor) PieceBounds(index int) (begin, end int64) {
	begin = int64(index) * d.PieceLength
	end = begin + d.PieceLength
	if end > d.Length {
		end = d.Length
	}
	return begin, end
}

// PieceSize is PieceLength for every piece but the last, which may be
// shorter. Out of range indexes have size 0.
func (d *Descriptor) PieceSize(index int) int64 {
	if index < 0 || index >= d.NumPieces() {
		return 0
	}
	begin, end := d.PieceBounds(index)
	return end - begin
}

// Trackers lists the announce URL followed by every tier of the announce
// list, in order and without repeats.
func (d *Descriptor) Trackers() []string {
	seen := make(map[string]bool)
	var trackers []string
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		trackers = append(trackers, u)
	}

	add(d.Announce)
	for _, tier := range d.AnnounceList {
		for _, u := range tier {
			add(u)
		}
	}
	return trackers
}

// FilePaths returns the relative path of every file in the content.
func (d *Descriptor) FilePaths() []string {
	if !d.IsMultiFile() {
		return []string{d.Name}
	}
	paths := make([]string, len(d.Files))
	for i, f := range d.Files {
		paths[i] = filepath.Join(append([]string{d.Name}, f.Path...)...)
	}
	return paths
}
