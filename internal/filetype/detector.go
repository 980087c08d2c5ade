package filetype

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/result"
)

// Route is the conversion path a document takes to become a screenshot.
type Route string

const (
	RoutePDF         Route = "pdf"
	RouteImage       Route = "image"
	RouteOffice      Route = "office"
	RouteUnsupported Route = "unsupported"
)

// ImageExtensions are rasters the optimizer can decode directly.
var ImageExtensions = []string{"png", "jpg", "jpeg", "bmp", "tif", "tiff", "gif"}

// OfficeExtensions are formats handed to LibreOffice for PDF conversion.
var OfficeExtensions = []string{
	"doc", "docx", "rtf", "odt", // Word processing
	"xls", "xlsx", "ods", "csv", // Spreadsheets
	"ppt", "pptx", "odp", // Presentations
	"vsd", "vsdx", // Visio diagrams
	"txt", "html", "htm", // Text/Web
}

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string `json:"mime_type"`
	Extension   string `json:"extension"`
	Route       Route  `json:"route"`
	Supported   bool   `json:"supported"`
	Description string `json:"description"`
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// SupportedExtensions lists every accepted extension without the dot.
func SupportedExtensions() []string {
	out := []string{"pdf"}
	out = append(out, ImageExtensions...)
	return append(out, OfficeExtensions...)
}

// IsSupportedExtension reports whether ext (with or without dot) is accepted.
func IsSupportedExtension(ext string) bool {
	return extensionRoute(ext) != RouteUnsupported
}

func extensionRoute(ext string) Route {
	e := strings.ToLower(strings.TrimPrefix(ext, "."))
	switch {
	case e == "pdf":
		return RoutePDF
	case slices.Contains(ImageExtensions, e):
		return RouteImage
	case slices.Contains(OfficeExtensions, e):
		return RouteOffice
	}
	return RouteUnsupported
}

// Detect checks the extension against the supported set and confirms it
// with magic bytes. Unsupported files are reported with a wrapped
// result.ErrUnsupportedInput.
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	st, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: input file: %w", result.ErrUnsupportedInput, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", result.ErrUnsupportedInput, filePath)
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", result.ErrUnsupportedInput, filePath)
	}

	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	info := &FileTypeInfo{
		MIMEType:  officeMIME(mtype.String(), ext),
		Extension: ext,
	}
	log.Debug().Str("mime", info.MIMEType).Str("ext", ext).Str("file", filePath).Msg("detected file type")

	byExt := extensionRoute(ext)
	sniffed := mimeRoute(info.MIMEType)

	switch byExt {
	case RoutePDF:
		if sniffed == RoutePDF {
			info.Route = RoutePDF
		}
	case RouteImage:
		if sniffed == RouteImage {
			info.Route = RouteImage
		}
	case RouteOffice:
		// Content wins when an office-named file is really a PDF or raster.
		switch sniffed {
		case RoutePDF, RouteImage:
			info.Route = sniffed
		default:
			info.Route = RouteOffice
		}
	}

	if info.Route == "" {
		info.Route = RouteUnsupported
		info.Description = fmt.Sprintf("Unsupported file type: %s (%s)", info.MIMEType, ext)
		return info, fmt.Errorf("%w: %s content does not match a supported format (detected %s)",
			result.ErrUnsupportedInput, filepath.Base(filePath), info.MIMEType)
	}
	info.Supported = true
	info.Description = describe(info.MIMEType)
	return info, nil
}

// mimeRoute classifies a sniffed MIME type.
func mimeRoute(mimeType string) Route {
	switch {
	case mimeType == "application/pdf":
		return RoutePDF
	case mimeType == "image/png", mimeType == "image/jpeg", mimeType == "image/gif",
		mimeType == "image/bmp", mimeType == "image/x-ms-bmp", mimeType == "image/tiff":
		return RouteImage
	}
	return RouteOffice
}

// officeMIME refines container MIME types (ZIP, OLE) using the extension.
func officeMIME(mimeType, ext string) string {
	if mimeType == "application/zip" || strings.Contains(mimeType, "application/x-zip") {
		switch ext {
		case ".docx":
			return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		case ".xlsx":
			return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		case ".pptx":
			return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
		case ".vsdx":
			return "application/vnd.ms-visio.drawing.main+xml"
		case ".odt":
			return "application/vnd.oasis.opendocument.text"
		case ".ods":
			return "application/vnd.oasis.opendocument.spreadsheet"
		case ".odp":
			return "application/vnd.oasis.opendocument.presentation"
		}
		log.Warn().Str("ext", ext).Msg("ZIP file with unrecognized extension")
	}

	if mimeType == "application/x-ole-storage" || mimeType == "application/x-cfb" {
		switch ext {
		case ".doc":
			return "application/msword"
		case ".xls":
			return "application/vnd.ms-excel"
		case ".ppt":
			return "application/vnd.ms-powerpoint"
		case ".vsd":
			return "application/vnd.ms-visio.drawing"
		}
		log.Warn().Str("ext", ext).Msg("OLE storage with unrecognized extension")
	}

	// mimetype reports parameters such as charset; keep only the media type.
	if i := strings.Index(mimeType, ";"); i >= 0 {
		return strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

func describe(mimeType string) string {
	switch {
	case mimeType == "application/pdf":
		return "PDF document"
	case mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "Microsoft Word document"
	case mimeType == "application/msword":
		return "Microsoft Word document (legacy)"
	case mimeType == "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		mimeType == "application/vnd.ms-powerpoint":
		return "Microsoft PowerPoint presentation"
	case mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mimeType == "application/vnd.ms-excel":
		return "Microsoft Excel spreadsheet"
	case strings.HasPrefix(mimeType, "application/vnd.oasis.opendocument"):
		return "OpenDocument file"
	case mimeType == "application/rtf", mimeType == "text/rtf":
		return "Rich Text Format"
	case strings.HasPrefix(mimeType, "application/vnd.ms-visio"):
		return "Microsoft Visio drawing"
	case mimeType == "text/html":
		return "HTML document"
	case strings.HasPrefix(mimeType, "image/"):
		return "Image file"
	case strings.HasPrefix(mimeType, "text/"):
		return "Plain text file"
	}
	return "Document"
}
