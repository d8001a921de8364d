// Package attach turns pasted, dropped or on-disk items into meeting images.
// Only images are kept; everything else is reported as skipped.
package attach

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
)

// DefaultBaseName is used when an item has no file name.
const DefaultBaseName = "image"

// MaxFileBytes caps a single attachment read from disk.
const MaxFileBytes = 20 << 20

// Item is one pasted or dropped entry: raw bytes, the type the source
// declared (may be empty) and an optional file name.
type Item struct {
	Data     []byte
	MimeType string
	Name     string
}

// Sink receives accepted images. *session.Controller satisfies it.
type Sink interface {
	AddImage(ctx context.Context, data []byte, mimeType, name string) (*meeting.Image, error)
}

// Skipped describes an item that was not attached.
type Skipped struct {
	Index    int    `json:"index"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Reason   string `json:"reason"`
}

// Outcome lists what happened to each item.
type Outcome struct {
	Accepted []meeting.Image `json:"accepted"`
	Skipped  []Skipped       `json:"skipped"`
}

// Classify returns the image mime type for it and whether it is an image.
// A declared image/* type is trusted. A missing or generic declared type
// falls back to sniffing the content. Any other declared type is rejected.
func Classify(it Item) (string, bool) {
	declared := baseType(it.MimeType)
	switch {
	case strings.HasPrefix(declared, "image/"):
		return declared, true
	case declared == "" || declared == "application/octet-stream":
		detected := baseType(mimetype.Detect(it.Data).String())
		return detected, strings.HasPrefix(detected, "image/")
	default:
		return declared, false
	}
}

// DisplayName returns it.Name, or "image" plus the extension of mimeType
// ("image.png") when the item has no name.
func DisplayName(name, mimeType string) string {
	if name = strings.TrimSpace(filepath.Base(name)); name != "" && name != "." && name != string(filepath.Separator) {
		return name
	}
	ext := ".png"
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		ext = m.Extension()
	}
	return DefaultBaseName + ext
}

// Accept forwards every image item to sink in order. Non-images and empty
// items are skipped. A sink error stops processing; the outcome so far is
// returned with it.
func Accept(ctx context.Context, sink Sink, items []Item) (*Outcome, error) {
	out := &Outcome{Accepted: []meeting.Image{}, Skipped: []Skipped{}}
	for i, it := range items {
		if len(it.Data) == 0 {
			out.Skipped = append(out.Skipped, Skipped{Index: i, Name: it.Name, MimeType: it.MimeType, Reason: "empty"})
			continue
		}
		mimeType, ok := Classify(it)
		if !ok {
			out.Skipped = append(out.Skipped, Skipped{
				Index:    i,
				Name:     it.Name,
				MimeType: mimeType,
				Reason:   errors.NewUnsupportedMedia(mimeType).Message,
			})
			continue
		}
		img, err := sink.AddImage(ctx, it.Data, mimeType, DisplayName(it.Name, mimeType))
		if err != nil {
			return out, err
		}
		out.Accepted = append(out.Accepted, *img)
	}
	return out, nil
}

// ReadFile loads a file from disk as an Item. The declared type comes from
// the extension; Classify still sniffs when the extension is unknown.
func ReadFile(path string) (Item, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Item{}, errors.NewFileNotFound(path)
		}
		return Item{}, errors.NewInternal(err)
	}
	if info.IsDir() {
		return Item{}, errors.NewInvalidRequest(fmt.Sprintf("%s is a directory", path))
	}
	if info.Size() > MaxFileBytes {
		return Item{}, errors.NewInvalidRequest(fmt.Sprintf("%s exceeds %d MiB", path, MaxFileBytes>>20))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Item{}, errors.NewInternal(err)
	}
	return Item{
		Data:     data,
		MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Name:     filepath.Base(path),
	}, nil
}

// AcceptFiles reads each path and attaches the images among them.
// Unreadable paths are reported as skipped.
func AcceptFiles(ctx context.Context, sink Sink, paths []string) (*Outcome, error) {
	items := make([]Item, 0, len(paths))
	var unreadable []Skipped
	index := make([]int, 0, len(paths))
	for i, p := range paths {
		it, err := ReadFile(p)
		if err != nil {
			unreadable = append(unreadable, Skipped{Index: i, Name: filepath.Base(p), Reason: err.Error()})
			continue
		}
		items = append(items, it)
		index = append(index, i)
	}

	out, err := Accept(ctx, sink, items)
	if out != nil {
		// Map item positions back to the caller's path indexes.
		for j := range out.Skipped {
			out.Skipped[j].Index = index[out.Skipped[j].Index]
		}
		out.Skipped = append(unreadable, out.Skipped...)
	}
	return out, err
}

func baseType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}
