package images

import (
	"fmt"
	"image"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownResolution is returned by ParseResolution for unrecognized names.
var ErrUnknownResolution = errors.New("unknown resolution")

// ResolutionAlias is the short name of a camera resolution (e.g. "1080p").
type ResolutionAlias string

// Common surveillance camera resolutions.
const (
	ResolutionAlias360p  ResolutionAlias = "360p"
	ResolutionAlias480p  ResolutionAlias = "480p"
	ResolutionAlias540p  ResolutionAlias = "540p"
	ResolutionAlias720p  ResolutionAlias = "720p"
	ResolutionAlias1MP   ResolutionAlias = "1mp"
	ResolutionAlias1080p ResolutionAlias = "1080p"
	ResolutionAlias3MP   ResolutionAlias = "3mp"
	ResolutionAlias1440p ResolutionAlias = "1440p"
	ResolutionAlias4K    ResolutionAlias = "4k"
)

// Pixels describes the exact dimensions of a resolution.
type Pixels struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Resolution describes a camera resolution standard.
type Resolution struct {
	Name        string          `json:"name" yaml:"name"`
	Alias       ResolutionAlias `json:"alias" yaml:"alias"`
	AspectRatio string          `json:"aspect_ratio" yaml:"aspect_ratio"`
	Pixels      Pixels          `json:"pixels" yaml:"pixels"`
}

// GetMegaPixels returns the megapixel count rounded to two decimal places
// (e.g. 2.07 for 1080p).
func (r Resolution) GetMegaPixels() float64 {
	if r.Pixels.Width <= 0 || r.Pixels.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Pixels.Width*r.Pixels.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// Size returns the dimensions as an image.Point.
func (r Resolution) Size() image.Point {
	return image.Pt(r.Pixels.Width, r.Pixels.Height)
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Pixels.Width, r.Pixels.Height, r.GetMegaPixels())
}

// Resolutions holds the known camera resolutions keyed by alias.
var Resolutions = map[ResolutionAlias]Resolution{
	ResolutionAlias360p:  {Name: "nHD", Alias: ResolutionAlias360p, AspectRatio: "16:9", Pixels: Pixels{640, 360}},
	ResolutionAlias480p:  {Name: "FWVGA", Alias: ResolutionAlias480p, AspectRatio: "16:9", Pixels: Pixels{854, 480}},
	ResolutionAlias540p:  {Name: "qHD 540p", Alias: ResolutionAlias540p, AspectRatio: "16:9", Pixels: Pixels{960, 540}},
	ResolutionAlias720p:  {Name: "HD 720p", Alias: ResolutionAlias720p, AspectRatio: "16:9", Pixels: Pixels{1280, 720}},
	ResolutionAlias1MP:   {Name: "1MP (5:4)", Alias: ResolutionAlias1MP, AspectRatio: "5:4", Pixels: Pixels{1280, 1024}},
	ResolutionAlias1080p: {Name: "Full HD 1080p", Alias: ResolutionAlias1080p, AspectRatio: "16:9", Pixels: Pixels{1920, 1080}},
	ResolutionAlias3MP:   {Name: "3MP (4:3)", Alias: ResolutionAlias3MP, AspectRatio: "4:3", Pixels: Pixels{2048, 1536}},
	ResolutionAlias1440p: {Name: "QHD 1440p", Alias: ResolutionAlias1440p, AspectRatio: "16:9", Pixels: Pixels{2560, 1440}},
	ResolutionAlias4K:    {Name: "4K UHD", Alias: ResolutionAlias4K, AspectRatio: "16:9", Pixels: Pixels{3840, 2160}},
}

// ParseResolution resolves an alias such as "1080p" or explicit dimensions
// such as "1920x1080".
func ParseResolution(s string) (Resolution, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if res, ok := Resolutions[ResolutionAlias(key)]; ok {
		return res, nil
	}

	w, h, ok := strings.Cut(key, "x")
	if ok {
		width, werr := strconv.Atoi(w)
		height, herr := strconv.Atoi(h)
		if werr == nil && herr == nil && width > 0 && height > 0 {
			return Resolution{
				Name:   key,
				Alias:  ResolutionAlias(key),
				Pixels: Pixels{Width: width, Height: height},
			}, nil
		}
	}
	return Resolution{}, errors.Wrapf(ErrUnknownResolution, "%q", s)
}

// GetAllResolutions returns the known resolutions in ascending pixel count.
func GetAllResolutions() []Resolution {
	all := make([]Resolution, 0, len(Resolutions))
	for _, res := range Resolutions {
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Pixels.Width*all[i].Pixels.Height < all[j].Pixels.Width*all[j].Pixels.Height
	})
	return all
}

// GetHighestResolutionUnderDimensions returns the largest known resolution
// that fits within width x height.
//
// Arguments:
//   - width: The maximum possible width of the image.
//   - height: The maximum possible height of the image.
//
// Returns:
//   - Resolution: The highest resolution that fits.
//   - bool: True if a resolution was found, otherwise false.
func GetHighestResolutionUnderDimensions(width, height int) (Resolution, bool) {
	var highest Resolution
	var found bool

	for _, res := range GetAllResolutions() {
		if res.Pixels.Width <= width && res.Pixels.Height <= height {
			highest = res
			found = true
		}
	}
	return highest, found
}
