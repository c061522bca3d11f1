package models

import (
	"strings"

	"github.com/pkg/errors"
)

// UnknownLabel is the label given to class ids outside a class set.
const UnknownLabel = "Unknown"

// ErrUnknownClassSet is returned when a class set name is not registered.
var ErrUnknownClassSet = errors.New("unknown class set")

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// ClassSet ties a model family to its full list of labels.
//
// Classes are indexed by position, so Classes[i].Index == i for every
// well-formed set.
type ClassSet struct {
	// Class set identifier.
	Family ModelFamily
	// Classes that are supported and mappable.
	Classes []OutputClass
}

// NewClassSet builds a class set from an ordered list of labels.
func NewClassSet(family ModelFamily, labels ...string) *ClassSet {
	classes := make([]OutputClass, len(labels))
	for i, name := range labels {
		classes[i] = OutputClass{Index: i, Name: name}
	}
	return &ClassSet{Family: family, Classes: classes}
}

// Len returns the number of classes. A nil set has none.
func (s *ClassSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Classes)
}

// Label returns the name for a class index.
//
// Arguments:
//   - idx: The class index reported by the decoder.
//
// Returns:
//   - string: The class name, or UnknownLabel when idx is out of range or the set is nil.
func (s *ClassSet) Label(idx int) string {
	if s == nil || idx < 0 || idx >= len(s.Classes) {
		return UnknownLabel
	}
	return s.Classes[idx].Name
}

// Index returns the class index for a name, or -1 when not present.
func (s *ClassSet) Index(name string) int {
	if s == nil {
		return -1
	}
	for _, c := range s.Classes {
		if c.Name == name {
			return c.Index
		}
	}
	return -1
}

// Labels returns the class names in index order.
func (s *ClassSet) Labels() []string {
	out := make([]string, s.Len())
	for i := range out {
		out[i] = s.Classes[i].Name
	}
	return out
}

// CarPartClasses is the 7-class vehicle part detector label set.
var CarPartClasses = ClassSet{
	Family: ModelFamilyCarParts,
	Classes: []OutputClass{
		{0, "Bonnet"},
		{1, "Bumper"},
		{2, "Dickey"},
		{3, "Door"},
		{4, "Fender"},
		{5, "Light"},
		{6, "Windshield"},
	},
}

// COCOClasses is the full 80 COCO classes plus "__background__" at index 0.
var COCOClasses = ClassSet{
	Family: ModelFamilyCOCO,
	Classes: []OutputClass{
		{0, "__background__"},
		{1, "person"},
		{2, "bicycle"},
		{3, "car"},
		{4, "motorcycle"},
		{5, "airplane"},
		{6, "bus"},
		{7, "train"},
		{8, "truck"},
		{9, "boat"},
		{10, "traffic light"},
		{11, "fire hydrant"},
		{12, "stop sign"},
		{13, "parking meter"},
		{14, "bench"},
		{15, "bird"},
		{16, "cat"},
		{17, "dog"},
		{18, "horse"},
		{19, "sheep"},
		{20, "cow"},
		{21, "elephant"},
		{22, "bear"},
		{23, "zebra"},
		{24, "giraffe"},
		{25, "backpack"},
		{26, "umbrella"},
		{27, "handbag"},
		{28, "tie"},
		{29, "suitcase"},
		{30, "frisbee"},
		{31, "skis"},
		{32, "snowboard"},
		{33, "sports ball"},
		{34, "kite"},
		{35, "baseball bat"},
		{36, "baseball glove"},
		{37, "skateboard"},
		{38, "surfboard"},
		{39, "tennis racket"},
		{40, "bottle"},
		{41, "wine glass"},
		{42, "cup"},
		{43, "fork"},
		{44, "knife"},
		{45, "spoon"},
		{46, "bowl"},
		{47, "banana"},
		{48, "apple"},
		{49, "sandwich"},
		{50, "orange"},
		{51, "broccoli"},
		{52, "carrot"},
		{53, "hot dog"},
		{54, "pizza"},
		{55, "donut"},
		{56, "cake"},
		{57, "chair"},
		{58, "couch"},
		{59, "potted plant"},
		{60, "bed"},
		{61, "dining table"},
		{62, "toilet"},
		{63, "tv"},
		{64, "laptop"},
		{65, "mouse"},
		{66, "remote"},
		{67, "keyboard"},
		{68, "cell phone"},
		{69, "microwave"},
		{70, "oven"},
		{71, "toaster"},
		{72, "sink"},
		{73, "refrigerator"},
		{74, "book"},
		{75, "clock"},
		{76, "vase"},
		{77, "scissors"},
		{78, "teddy bear"},
		{79, "hair drier"},
		{80, "toothbrush"},
	},
}

// YOLOClasses is the 80 COCO classes (no background).
// YOLO models index directly into this zero-based list.
var YOLOClasses = ClassSet{
	Family: ModelFamilyYOLO,
	Classes: func() []OutputClass {
		classes := make([]OutputClass, len(COCOClasses.Classes)-1) // drop background
		for i := 1; i < len(COCOClasses.Classes); i++ {
			classes[i-1] = OutputClass{i - 1, COCOClasses.Classes[i].Name}
		}
		return classes
	}(),
}

// PascalVOCClasses is the 20 Pascal VOC classes + "__background__" at index 0.
var PascalVOCClasses = ClassSet{
	Family: ModelFamilyVOC,
	Classes: []OutputClass{
		{0, "__background__"},
		{1, "aeroplane"},
		{2, "bicycle"},
		{3, "bird"},
		{4, "boat"},
		{5, "bottle"},
		{6, "bus"},
		{7, "car"},
		{8, "cat"},
		{9, "chair"},
		{10, "cow"},
		{11, "diningtable"},
		{12, "dog"},
		{13, "horse"},
		{14, "motorbike"},
		{15, "person"},
		{16, "pottedplant"},
		{17, "sheep"},
		{18, "sofa"},
		{19, "train"},
		{20, "tvmonitor"},
	},
}

// AllClassSets collects every registered ClassSet in one place.
var AllClassSets = []*ClassSet{
	&CarPartClasses,
	&COCOClasses,
	&YOLOClasses,
	&PascalVOCClasses,
}

// LookupClassSet returns the registered class set for a family name.
//
// Arguments:
//   - name: A family name such as "carparts", "yolo" or "coco". Case-insensitive.
//
// Returns:
//   - *ClassSet: The registered set.
//   - error: ErrUnknownClassSet if no set matches.
func LookupClassSet(name string) (*ClassSet, error) {
	family := ModelFamily(strings.ToLower(strings.TrimSpace(name)))
	for _, set := range AllClassSets {
		if set.Family == family {
			return set, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownClassSet, "%q", name)
}
