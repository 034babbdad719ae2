package layout

import (
	"fmt"
	"strings"
)

const (
	StoreSection     = "store"
	ThumbnailSubpath = "thumbnail"

	defaultFormat      = ".png"
	defaultJPEGQuality = "92"
)

// PathGenerator maps a stored image position to a thumbnail URI.
type PathGenerator func(group, index uint32) string

// NewPathGenerator returns a generator producing
// file://{base}/{group}-{index}{aspect}{resolution}{format}.
func NewPathGenerator(base, aspect, resolution, format string) PathGenerator {
	return func(group, index uint32) string {
		return fmt.Sprintf("file://%s/%d-%d%s%s%s", base, group, index, aspect, resolution, format)
	}
}

// thumbnailSection accumulates one [store] section.
type thumbnailSection struct {
	format     string
	aspect     string
	resolution string
	buildable  bool
}

func newThumbnailSection() thumbnailSection {
	return thumbnailSection{format: defaultFormat}
}

// ThumbnailBuilder collects a PathGenerator for every [store] section that
// declares a thumbnail_path.
type ThumbnailBuilder struct {
	basePath   string
	section    thumbnailSection
	generators []PathGenerator
}

func NewThumbnailBuilder(basePath string) *ThumbnailBuilder {
	return &ThumbnailBuilder{
		basePath: basePath,
		section:  newThumbnailSection(),
	}
}

func (b *ThumbnailBuilder) Assign(key, value string) {
	switch key {
	case "thumbnail_path":
		b.section.buildable = true
	case "thumbnail_resolution":
		b.section.resolution = "p" + value
	case "thumbnail_aspect":
		b.section.aspect = "-" + value
	case "thumbnail_format":
		b.section.format = thumbnailFormatSuffix(value)
	}
}

func (b *ThumbnailBuilder) EndSection() {
	s := b.section
	b.section = newThumbnailSection()
	if !s.buildable {
		return
	}
	b.generators = append(b.generators, NewPathGenerator(b.basePath, s.aspect, s.resolution, s.format))
}

// Generators returns the generators built so far in section order.
func (b *ThumbnailBuilder) Generators() []PathGenerator {
	return b.generators
}

// thumbnailFormatSuffix maps "jpegNN" to "qNN.jpeg" and anything else to
// ".value".
func thumbnailFormatSuffix(value string) string {
	if len(value) >= 4 && strings.EqualFold(value[:4], "jpeg") {
		quality := value[4:]
		if quality == "" {
			quality = defaultJPEGQuality
		}
		return "q" + quality + ".jpeg"
	}
	return "." + value
}
