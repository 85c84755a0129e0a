package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
)

type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

type formField struct {
	name  string
	value string
}

// Form is an ordered multipart payload, the server-side stand-in for the
// browser's FormData.
type Form struct {
	fields []formField
	files  []File
}

func NewForm() *Form {
	return &Form{}
}

// Set appends a field. Repeated names are sent repeatedly, as FormData.append does.
func (f *Form) Set(name, value string) *Form {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

func (f *Form) Attach(file File) *Form {
	f.files = append(f.files, file)
	return f
}

// Get returns the first value for name.
func (f *Form) Get(name string) (string, bool) {
	for _, fld := range f.fields {
		if fld.name == name {
			return fld.value, true
		}
	}
	return "", false
}

func (f *Form) Names() []string {
	names := make([]string, 0, len(f.fields))
	for _, fld := range f.fields {
		names = append(names, fld.name)
	}
	return names
}

func (f *Form) Files() []File {
	return f.files
}

func (f *Form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, fld := range f.fields {
		if err := w.WriteField(fld.name, fld.value); err != nil {
			return nil, "", err
		}
	}

	for _, file := range f.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Name))
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
