package classifier

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// DefaultMimeType is reported for names with no known extension
const DefaultMimeType = "application/octet-stream"

// extensionTypes fills the gaps of the builtin mime table, which lacks most
// video formats, so classification does not depend on the host's mime.types.
var extensionTypes = map[string]string{
	".apng": "image/apng",
	".avif": "image/avif",
	".bmp":  "image/bmp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".ico":  "image/x-icon",
	".jfif": "image/jpeg",
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".svg":  "image/svg+xml",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".3gp":  "video/3gpp",
	".avi":  "video/x-msvideo",
	".flv":  "video/x-flv",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".ogv":  "video/ogg",
	".webm": "video/webm",
	".wmv":  "video/x-ms-wmv",
}

func init() {
	for ext, typ := range extensionTypes {
		_ = mime.AddExtensionType(ext, typ)
	}
}

// MimeType returns the MIME type implied by the extension of name, which
// may be a bare filename or a URL. Query strings and fragments are ignored.
func MimeType(name string) string {
	if u, err := url.Parse(name); err == nil && u.Path != "" {
		name = u.Path
	}

	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return DefaultMimeType
	}
	if typ, ok := extensionTypes[ext]; ok {
		return typ
	}
	if typ := mime.TypeByExtension(ext); typ != "" {
		return typ
	}
	return DefaultMimeType
}
