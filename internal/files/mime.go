package files

// mimeTypes maps lowercase extensions to the content type served on
// preview/download. Unknown extensions fall back to octet-stream.
var mimeTypes = map[string]string{
	"txt":  "text/plain",
	"csv":  "text/csv",
	"html": "text/html",
	"json": "application/json",
	"xml":  "application/xml",
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"zip":  "application/zip",
}

// MimeType returns the content type for a lowercase extension.
func MimeType(ext string) string {
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}
