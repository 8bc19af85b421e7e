package biz

// displayTypes 常见 MIME 类型的友好展示名，未收录的类型原样返回
var displayTypes = map[string]string{
	"application/pdf": "PDF",
	"image/jpeg":      "JPEG Image",
	"image/png":       "PNG Image",
	"text/plain":         "Text File",
	"application/msword": "Word Document",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "Word Document",
}

// DisplayContentType 返回 MIME 类型的友好展示名
func DisplayContentType(contentType string) string {
	if label, ok := displayTypes[contentType]; ok {
		return label
	}
	return contentType
}
