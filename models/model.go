// Package models - Definitions for model output class styles and sets.
package models

// ModelFamily is the labelling convention a model was trained with.
type ModelFamily string

const (
	// ModelFamilyCarParts is the 7-class vehicle part detector.
	ModelFamilyCarParts ModelFamily = "carparts"
	// ModelFamilyCOCO is the 80 COCO classes + background.
	ModelFamilyCOCO ModelFamily = "coco"
	// ModelFamilyYOLO is the 80 COCO classes, no background.
	ModelFamilyYOLO ModelFamily = "yolo"
	// ModelFamilyVOC is the 20 Pascal VOC classes + background.
	ModelFamilyVOC ModelFamily = "voc"
	// ModelFamilyCustom is a class set built from user supplied labels.
	ModelFamilyCustom ModelFamily = "custom"
)
