package torrent

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"time"

	"metatracker/bencode"
)

// ErrValidation marks a field that is present and well typed but whose value
// breaks an invariant of the descriptor.
var ErrValidation = errors.New("invalid torrent")

// Open reads a .torrent file and parses it.
func Open(path string) (*Descriptor, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(buf)
}

// Parse decodes and validates a .torrent file held in buf. The info hash is
// the SHA-1 of the bytes buf holds for the info dictionary, exactly as
// encoded.
func Parse(buf []byte) (*Descriptor, error) {
	root, err := bencode.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode torrent: %w", err)
	}

	dict, ok := root.(bencode.Dictionary)
	if !ok {
		return nil, bencode.Mismatch("torrent", bencode.KindDictionary, root)
	}

	announce, err := dict.Text("announce")
	if err != nil {
		return nil, err
	}

	info, err := dict.Dict("info")
	if err != nil {
		return nil, err
	}

	t := &Descriptor{
		Announce: announce,
		InfoHash: sha1.Sum(info.Span.Of(buf)),
	}

	if err := parseInfo(info, t); err != nil {
		return nil, err
	}
	if err := parseOptional(dict, t); err != nil {
		return nil, err
	}
	if err := validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

func parseInfo(info bencode.Dictionary, t *Descriptor) error {
	var err error

	if t.Name, err = info.Text("name"); err != nil {
		return err
	}
	if t.PieceLength, err = info.Int("piece length"); err != nil {
		return err
	}

	pieces, err := info.Bytes("pieces")
	if err != nil {
		return err
	}
	if t.PieceHashes, err = parsePieces(pieces); err != nil {
		return err
	}

	if private, ok, err := info.OptInt("private"); err != nil {
		return err
	} else if ok {
		t.Private = private == 1
	}

	// single file mode carries length, multi-file mode carries files
	files, isMulti, err := info.OptList("files")
	if err != nil {
		return err
	}
	if !isMulti {
		t.Length, err = info.Int("length")
		return err
	}
	if _, hasLength := info.Get("length"); hasLength {
		return fmt.Errorf("%w: info has both length and files", ErrValidation)
	}

	t.Files = make([]File, len(files.Items))
	for i, item := range files.Items {
		fileDict, ok := item.(bencode.Dictionary)
		if !ok {
			return fmt.Errorf("file %d: %w", i, bencode.Mismatch("files", bencode.KindDictionary, item))
		}
		if t.Files[i], err = parseFile(fileDict); err != nil {
			return fmt.Errorf("file %d: %w", i, err)
		}
		if t.Files[i].Length > math.MaxInt64-t.Length {
			return fmt.Errorf("%w: total length overflows", ErrValidation)
		}
		t.Length += t.Files[i].Length
	}
	return nil
}

func parseFile(dict bencode.Dictionary) (File, error) {
	length, err := dict.Int("length")
	if err != nil {
		return File{}, err
	}
	if length < 0 {
		return File{}, fmt.Errorf("%w: negative file length %d", ErrValidation, length)
	}

	pathList, err := dict.List("path")
	if err != nil {
		return File{}, err
	}
	if pathList.Len() == 0 {
		return File{}, fmt.Errorf("%w: empty file path", ErrValidation)
	}

	path := make([]string, pathList.Len())
	for j, elem := range pathList.Items {
		s, ok := elem.(bencode.ByteString)
		if !ok {
			return File{}, bencode.Mismatch("path", bencode.KindByteString, elem)
		}
		path[j] = s.Text()
	}
	return File{Length: length, Path: path}, nil
}

func parseOptional(dict bencode.Dictionary, t *Descriptor) error {
	tiers, ok, err := dict.OptList("announce-list")
	if err != nil {
		return err
	}
	if ok {
		t.AnnounceList = make([][]string, tiers.Len())
		for i, tier := range tiers.Items {
			tierList, ok := tier.(bencode.List)
			if !ok {
				return bencode.Mismatch("announce-list", bencode.KindList, tier)
			}
			t.AnnounceList[i] = make([]string, tierList.Len())
			for j, tracker := range tierList.Items {
				s, ok := tracker.(bencode.ByteString)
				if !ok {
					return bencode.Mismatch("announce-list", bencode.KindByteString, tracker)
				}
				t.AnnounceList[i][j] = s.Text()
			}
		}
	}

	if t.Comment, _, err = dict.OptText("comment"); err != nil {
		return err
	}
	if t.CreatedBy, _, err = dict.OptText("created by"); err != nil {
		return err
	}

	created, ok, err := dict.OptInt("creation date")
	if err != nil {
		return err
	}
	if ok {
		t.CreationDate = time.Unix(created, 0)
	}
	return nil
}

// parsePieces splits the concatenated SHA-1 hashes of the pieces string.
func parsePieces(pieces []byte) ([][20]byte, error) {
	if len(pieces)%HashLength != 0 {
		return nil, fmt.Errorf("%w: pieces length %d is not a multiple of %d", ErrValidation, len(pieces), HashLength)
	}

	numPieces := len(pieces) / HashLength
	hashes := make([][20]byte, numPieces)
	for i := range hashes {
		copy(hashes[i][:], pieces[i*HashLength:(i+1)*HashLength])
	}
	return hashes, nil
}

func validate(t *Descriptor) error {
	u, err := url.Parse(t.Announce)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: announce %q is not an absolute URL", ErrValidation, t.Announce)
	}

	if t.PieceLength <= 0 {
		return fmt.Errorf("%w: piece length %d is not positive", ErrValidation, t.PieceLength)
	}
	if t.Length <= 0 {
		return fmt.Errorf("%w: length %d is not positive", ErrValidation, t.Length)
	}

	want := t.Length / t.PieceLength
	if t.Length%t.PieceLength != 0 {
		want++
	}
	if int64(t.NumPieces()) != want {
		return fmt.Errorf("%w: %d piece hashes for %d bytes in pieces of %d, want %d",
			ErrValidation, t.NumPieces(), t.Length, t.PieceLength, want)
	}
	return nil
}
