package core

import "strings"

// Level is a privacy sensitivity rating for a decoded tag.
type Level int

const (
	Unrecognized Level = iota
	Safe
	RemoveAdvised
	Insecure
)

func (l Level) String() string {
	switch l {
	case Insecure:
		return "insecure"
	case RemoveAdvised:
		return "remove-advised"
	case Safe:
		return "safe"
	default:
		return "unrecognized"
	}
}

// Location, time-of-capture and device-identity tags.
var insecureNames = set(
	"GPSPosition", "ImageUniqueID", "Modified", "LastModified",
	"SubSecTime", "SubSecTimeDigitized", "SubSecTimeOriginal",
	"ExposureIndex", "LensModel", "MakerNote", "BodySerialNumber",
	"CameraOwnerName", "DateCreated", "TimeCreated", "DigitalCreationDate",
	"City", "Province", "Country",
)

var insecurePrefixes = []string{"GPS", "DateTime", "OffsetTime"}

var removeAdvisedNames = set(
	"Make", "Model", "Software", "SceneCaptureType", "DigitalZoomRatio",
	"FNumber", "ExposureBiasValue", "ExposureMode", "MeteringMode",
	"ShutterSpeedValue", "ExposureTime", "WhiteBalance", "ApertureValue",
	"FocalLength", "FocalLengthIn35mmFilm", "ISOSpeedRatings",
	"PhotographicSensitivity", "Flash", "ExposureProgram", "ExifVersion",
	"MaxApertureValue", "SceneType", "BrightnessValue", "SensingMethod",
	"ComponentsConfiguration", "LightSource", "FlashpixVersion",
	"InteroperabilityIndex", "InteroperabilityVersion", "HostComputer",
	"Artist", "Copyright", "CopyrightNotice", "ImageDescription", "UserComment",
	"DocumentName", "PageName", "LensMake", "LensSerialNumber",
	"LensSpecification", "SubjectDistance", "SubjectDistanceRange",
	"Contrast", "Saturation", "Sharpness", "GainControl", "CustomRendered",
	"CompositeImage", "RelatedSoundFile", "WaterDepth", "Acceleration",
	"CameraElevationAngle", "Keywords", "Caption", "Credit", "Byline",
	"BylineTitle", "LocationCreated", "Headline", "Contact", "CaptionWriter",
	"Comment", "Author", "Description", "Title", "XMPPacket", "ExtendedXMP",
)

var safeNames = set(
	"PixelXDimension", "PixelYDimension", "ImageWidth", "ImageLength",
	"Compression", "ColorSpace", "XResolution", "YResolution",
	"ResolutionUnit", "YCbCrPositioning", "JPEGInterchangeFormat",
	"JPEGInterchangeFormatLength", "ThumbJPEGInterchangeFormat",
	"ThumbJPEGInterchangeFormatLength", "Orientation", "BitsPerSample",
	"PhotometricInterpretation", "PlanarConfiguration", "TransferFunction",
	"WhitePoint", "PrimaryChromaticities", "ColorMap", "SamplesPerPixel",
	"YCbCrSubSampling", "YCbCrCoefficients", "ReferenceBlackWhite",
)

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Sensitivity rates a tag by its human-readable name.
func Sensitivity(name string) Level {
	// IFD1 and XMP names carry a qualifier; rate the last element.
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	switch {
	case insecureNames[name]:
		return Insecure
	case hasAnyPrefix(name, insecurePrefixes):
		return Insecure
	case removeAdvisedNames[name]:
		return RemoveAdvised
	case safeNames[name]:
		return Safe
	}
	return Unrecognized
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// SensitivityCounts tallies a record's entries per Level.
type SensitivityCounts struct {
	Insecure      int `json:"insecure"`
	RemoveAdvised int `json:"remove_advised"`
	Safe          int `json:"safe"`
	Unrecognized  int `json:"unrecognized"`
}

// Total returns the number of entries counted.
func (c SensitivityCounts) Total() int {
	return c.Insecure + c.RemoveAdvised + c.Safe + c.Unrecognized
}

// SensitivitySummary counts the record's entries per sensitivity level.
func (r *Record) SensitivitySummary() SensitivityCounts {
	var c SensitivityCounts
	for _, e := range r.Entries() {
		switch Sensitivity(e.Name) {
		case Insecure:
			c.Insecure++
		case RemoveAdvised:
			c.RemoveAdvised++
		case Safe:
			c.Safe++
		default:
			c.Unrecognized++
		}
	}
	return c
}
